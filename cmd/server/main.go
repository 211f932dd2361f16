package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tgvault/tgvault/internal/api"
	"github.com/tgvault/tgvault/internal/api/handlers"
	"github.com/tgvault/tgvault/internal/blobstore"
	"github.com/tgvault/tgvault/internal/config"
	"github.com/tgvault/tgvault/internal/crypt"
	"github.com/tgvault/tgvault/internal/progress"
	"github.com/tgvault/tgvault/internal/repositories"
	"github.com/tgvault/tgvault/internal/share"
	"github.com/tgvault/tgvault/internal/storage"
)

const sessionTTL = 24 * time.Hour

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.Envs.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db := repositories.ConnectDatabase(config.Envs.DB_URL)

	store := blobstore.NewS3Store(blobstore.S3Config{
		Endpoint:        config.Envs.Store.Endpoint,
		AccessKeyID:     config.Envs.Store.AccessKeyID,
		SecretAccessKey: config.Envs.Store.SecretAccessKey,
		BucketName:      config.Envs.Store.BucketName,
		Region:          config.Envs.Store.Region,
		UploadChunkSize: int64(config.Envs.Store.UploadChunkKB) << 10,
		FetchChunkSize:  int64(config.Envs.Store.DownloadChunkKB) << 10,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An unauthorized store is not fatal at boot; transfers fail with a
	// distinguishable error until credentials are fixed.
	if err := store.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("Blob store connection check failed")
	}

	vault := crypt.NewVault(config.Envs.EncryptionKey)
	hub := progress.NewHub(config.Envs.ProgressGrace)
	index := storage.NewIndex(db)
	engine := storage.NewEngine(db, store, vault, index, hub, config.Envs.DownloadDir)
	gate := share.NewGate(db, []byte(config.Envs.JWTSecret), config.Envs.ShareTokenTTL)

	h := &handlers.Handler{
		DB:          db,
		Engine:      engine,
		Index:       index,
		Hub:         hub,
		Gate:        gate,
		Store:       store,
		JWTSecret:   []byte(config.Envs.JWTSecret),
		StagingDir:  config.Envs.StagingDir,
		Environment: config.Envs.Environment,
		SessionTTL:  sessionTTL,
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Envs.Port),
		Handler: api.SetupRouter(h),
		// No write timeout: downloads of large objects can legitimately
		// take minutes. Header read is still bounded.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", config.Envs.Port).Msg("Starting TgVault server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Blob store close failed")
	}
}

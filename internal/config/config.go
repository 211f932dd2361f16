package config

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

type StoreConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UploadChunkKB   int
	DownloadChunkKB int
}

type Config struct {
	DB_URL          string
	Port            string
	JWTSecret       string
	Environment     string
	StagingDir      string
	DownloadDir     string
	EncryptionKey   string
	ShareTokenTTL   time.Duration
	ProgressGrace   time.Duration
	CorsConfig      cors.Options
	Store           StoreConfig
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	return Config{
		DB_URL:        getEnv("DB_URL", ""),
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		Environment:   getEnv("ENV", "development"),
		StagingDir:    getEnv("STAGING_DIR", "uploaded_files"),
		DownloadDir:   getEnv("DOWNLOAD_DIR", "downloaded_files"),
		EncryptionKey: getEnv("ENCRYPTION_KEY_PATH", "encryption.key"),
		ShareTokenTTL: time.Duration(getEnvInt("SHARE_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		ProgressGrace: time.Duration(getEnvInt("PROGRESS_GRACE_SECONDS", 5)) * time.Second,
		CorsConfig:    CorsConfig(),
		Store: StoreConfig{
			Endpoint:        getEnv("STORE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORE_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("STORE_BUCKET_NAME", ""),
			Region:          getEnv("STORE_REGION", "auto"),
			UploadChunkKB:   getEnvInt("STORE_UPLOAD_CHUNK_KB", 512),
			DownloadChunkKB: getEnvInt("STORE_DOWNLOAD_CHUNK_KB", 2048),
		},
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, fallback)
		return fallback
	}
	return n
}

func CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}
}

package api

import (
	"fmt"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "github.com/tgvault/tgvault/docs"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/api/handlers"
	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/config"
)

func SetupRouter(h *handlers.Handler) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(config.Envs.CorsConfig)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.Handle("/docs/", httpSwagger.WrapHandler)

	mainMux.HandleFunc("POST /api/v1/auth/sign-up", h.RegisterUser)
	mainMux.HandleFunc("POST /api/v1/auth/login", h.LoginUser)

	// Share-token access is anonymous; the token is the credential.
	mainMux.HandleFunc("GET /api/v1/access/file/{token}", h.AccessSharedFileInfo)
	mainMux.HandleFunc("GET /api/v1/access/file/{token}/download", h.DownloadSharedFile)
	mainMux.HandleFunc("GET /api/v1/access/folder/{token}", h.AccessSharedFolderInfo)
	mainMux.HandleFunc("GET /api/v1/access/folder/{token}/{filename}/download", h.DownloadFromSharedFolder)

	// Websocket handshake authenticates via query token inside the handler.
	mainMux.HandleFunc("GET /api/v1/ws/progress", h.WSProgress)

	// ---------- PROTECTED ROUTES ----------
	protectedMux := http.NewServeMux()

	protectedMux.HandleFunc("GET /files/{$}", h.ListFiles)

	protectedMux.HandleFunc("POST /folders/{$}", h.CreateFolder)
	protectedMux.HandleFunc("GET /folders/{$}", h.ListFolders)
	protectedMux.HandleFunc("DELETE /folders/{folder}", h.DeleteFolder)
	protectedMux.HandleFunc("PUT /folders/{folder}/rename", h.RenameFolder)
	protectedMux.HandleFunc("POST /folders/{folder}/share", h.ShareFolder)

	protectedMux.HandleFunc("GET /folders/{folder}/files/{$}", h.ListFilesInFolder)
	protectedMux.HandleFunc("POST /folders/{folder}/files/{$}", h.UploadFile)
	protectedMux.HandleFunc("GET /folders/{folder}/files/{filename}", h.GetFileInfo)
	protectedMux.HandleFunc("DELETE /folders/{folder}/files/{filename}", h.DeleteFile)
	protectedMux.HandleFunc("GET /folders/{folder}/files/{filename}/download", h.DownloadFile)
	protectedMux.HandleFunc("PUT /folders/{folder}/files/{filename}/rename", h.RenameFile)
	protectedMux.HandleFunc("POST /folders/{folder}/files/{filename}/move", h.MoveFile)
	protectedMux.HandleFunc("POST /folders/{folder}/files/{filename}/share", h.ShareFile)

	protectedMux.HandleFunc("GET /progress/{operation_id}", h.GetOperationProgress)
	protectedMux.HandleFunc("GET /stats/{$}", h.GetStats)
	protectedMux.HandleFunc("GET /store/status", h.StoreStatus)

	protectedMux.HandleFunc("POST /account/encryption/on", h.EnableEncryption)
	protectedMux.HandleFunc("POST /account/encryption/off", h.DisableEncryption)

	protectedMux.HandleFunc("POST /access/revoke/{token}", h.RevokeShareToken)
	protectedMux.HandleFunc("POST /auth/logout", h.Logout)

	mainMux.Handle("/api/v1/",
		http.StripPrefix(
			"/api/v1",
			middleware.AuthMiddleware(h.JWTSecret)(protectedMux),
		),
	)

	log.Info().Msg("Router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(handler)
	return handler
}

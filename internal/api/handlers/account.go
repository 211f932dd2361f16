package handlers

import (
	"net/http"

	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/utils"
)

// POST /account/encryption/on
func (h *Handler) EnableEncryption(w http.ResponseWriter, r *http.Request) {
	h.setEncryption(w, r, true)
}

// POST /account/encryption/off
func (h *Handler) DisableEncryption(w http.ResponseWriter, r *http.Request) {
	h.setEncryption(w, r, false)
}

func (h *Handler) setEncryption(w http.ResponseWriter, r *http.Request, enabled bool) {
	username := middleware.Username(r)

	result := h.DB.Model(&models.User{}).
		Where("username = ?", username).
		Update("encryption_enabled", enabled)
	if result.Error != nil {
		utils.ErrorResponse(w, result.Error)
		return
	}

	message := "Encryption disabled for this account"
	if enabled {
		message = "Encryption enabled for this account"
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: message,
	})
}

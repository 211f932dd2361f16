package handlers

import (
	"net/http"

	"github.com/tgvault/tgvault/internal/utils"
)

// GET /store/status
// Reports whether the remote blob store is reachable and authorized.
// Transfers attempted while unauthorized fail with a distinguishable
// not-authorized error; this endpoint lets clients surface that state up
// front.
func (h *Handler) StoreStatus(w http.ResponseWriter, r *http.Request) {
	authorized, err := h.Store.IsAuthorized(r.Context())
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	message := "Not authorized"
	if authorized {
		message = "Authorized"
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: message,
		Data: map[string]any{
			"authorized": authorized,
		},
	})
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/storage"
	"github.com/tgvault/tgvault/internal/utils"
)

// POST /folders/{folder}/files/{filename}/share
// ShareFile godoc
// @Summary Issue a share token for a single file
// @Tags Share
// @Produce json
// @Param folder path string true "Folder name"
// @Param filename path string true "File name"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/folders/{folder}/files/{filename}/share [post]
func (h *Handler) ShareFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")
	username := middleware.Username(r)

	if _, err := h.fileByName(folderName, filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	token, expiresAt, err := h.Gate.Issue(models.ShareScopeFile, folderName, filename, username)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Share link created",
		Data: map[string]any{
			"url":        fmt.Sprintf("/api/v1/access/file/%s", token),
			"expires_at": expiresAt,
		},
	})
}

// POST /folders/{folder}/share
func (h *Handler) ShareFolder(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	username := middleware.Username(r)

	if _, err := h.folderByName(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	token, expiresAt, err := h.Gate.Issue(models.ShareScopeFolder, folderName, "", username)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Share link created",
		Data: map[string]any{
			"url":        fmt.Sprintf("/api/v1/access/folder/%s", token),
			"expires_at": expiresAt,
		},
	})
}

// GET /access/file/{token}
func (h *Handler) AccessSharedFileInfo(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Gate.Validate(r.PathValue("token"), models.ShareScopeFile)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	file, err := h.fileByName(claims.Folder, claims.Filename)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File retrieved successfully",
		Data:    file,
	})
}

// GET /access/file/{token}/download
// Anonymous download through a share token; no progress tracking since
// the visitor has no progress subscription.
func (h *Handler) DownloadSharedFile(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Gate.Validate(r.PathValue("token"), models.ShareScopeFile)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	downloadPath, originalName, err := h.Engine.Download(r.Context(), claims.Folder, claims.Filename, claims.Owner, "")
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	h.serveLocalCopy(w, r, downloadPath, originalName)
}

// GET /access/folder/{token}
func (h *Handler) AccessSharedFolderInfo(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Gate.Validate(r.PathValue("token"), models.ShareScopeFolder)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	var files []models.File
	if err := h.DB.Where("folder = ?", claims.Folder).Find(&files).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Files retrieved successfully",
		Data:    files,
	})
}

// GET /access/folder/{token}/{filename}/download
func (h *Handler) DownloadFromSharedFolder(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Gate.Validate(r.PathValue("token"), models.ShareScopeFolder)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	filename := r.PathValue("filename")
	if err := storage.ValidateNames(filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	downloadPath, originalName, err := h.Engine.Download(r.Context(), claims.Folder, filename, claims.Owner, "")
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	h.serveLocalCopy(w, r, downloadPath, originalName)
}

// POST /access/revoke/{token}
func (h *Handler) RevokeShareToken(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r)

	if err := h.Gate.Revoke(r.PathValue("token"), username); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Share token revoked",
	})
}

package handlers

import (
	"net/http"

	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/utils"
)

// GET /stats/
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r)

	var totalFiles, totalFolders int64
	if err := h.DB.Model(&models.File{}).Count(&totalFiles).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if err := h.DB.Model(&models.Folder{}).Count(&totalFolders).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	var usedSpace int64
	row := h.DB.Model(&models.File{}).Select("COALESCE(SUM(size), 0)").Row()
	if err := row.Scan(&usedSpace); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	perFolder, err := h.Index.AllUsedSpace()
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	encryptionEnabled := false
	var user models.User
	if err := h.DB.Where("username = ?", username).First(&user).Error; err == nil {
		encryptionEnabled = user.EncryptionEnabled
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Stats retrieved successfully",
		Data: map[string]any{
			"total_space_used":      utils.HumanReadableSize(usedSpace),
			"total_files":           totalFiles,
			"total_folders":         totalFolders,
			"space_used_for_folder": perFolder,
			"encryption_enabled":    encryptionEnabled,
		},
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tgvault/tgvault/internal/apperrors"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/storage"
	"github.com/tgvault/tgvault/internal/utils"
	"gorm.io/gorm"
)

func (h *Handler) folderByName(name string) (*models.Folder, error) {
	var folder models.Folder
	if err := h.DB.Where("name = ?", name).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Folder", name)
		}
		return nil, err
	}
	return &folder, nil
}

// POST /folders/
// CreateFolder godoc
// @Summary Create a folder
// @Tags Folders
// @Accept json
// @Produce json
// @Success 201 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/folders/ [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Folder == "" {
		utils.ErrorResponse(w, apperrors.Validation("Missing folder name"))
		return
	}

	if err := storage.ValidateNames(input.Folder); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if _, err := h.folderByName(input.Folder); err == nil {
		utils.ErrorResponse(w, apperrors.Conflict(fmt.Sprintf("Folder '%s' already exists", input.Folder)))
		return
	}

	folder := models.Folder{Name: input.Folder}
	if err := h.DB.Create(&folder).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Folder created",
		Data:    folder,
	})
}

// GET /folders/
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	var folders []models.Folder
	if err := h.DB.Find(&folders).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Folders retrieved successfully",
		Data:    folders,
	})
}

// PUT /folders/{folder}/rename
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")

	var input struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.NewName == "" {
		utils.ErrorResponse(w, apperrors.Validation("Missing new folder name"))
		return
	}

	if err := storage.ValidateNames(folderName, input.NewName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	folder, err := h.folderByName(folderName)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if _, err := h.folderByName(input.NewName); err == nil {
		utils.ErrorResponse(w, apperrors.Conflict(fmt.Sprintf("Folder '%s' already exists", input.NewName)))
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := h.Index.RenameFolder(tx, folderName, input.NewName); err != nil {
			return err
		}
		return tx.Model(folder).Update("name", input.NewName).Error
	})
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: fmt.Sprintf("Folder '%s' renamed to '%s'", folderName, input.NewName),
	})
}

// DELETE /folders/{folder}
// The folder's remote objects are purged before the row disappears;
// a failed purge leaves the folder intact.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")

	if err := storage.ValidateNames(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	folder, err := h.folderByName(folderName)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if err := h.Engine.PurgeFolder(r.Context(), folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if err := h.DB.Delete(folder).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: fmt.Sprintf("Folder '%s' deleted", folderName),
	})
}

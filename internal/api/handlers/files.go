package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/apperrors"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/progress"
	"github.com/tgvault/tgvault/internal/storage"
	"github.com/tgvault/tgvault/internal/utils"
	"gorm.io/gorm"
)

const maxUploadSize = 2 << 30 // remote store caps uploads at 2 GB

func (h *Handler) fileByName(folder, filename string) (*models.File, error) {
	var file models.File
	if err := h.DB.Where("folder = ? AND filename = ?", folder, filename).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("File", filename)
		}
		return nil, err
	}
	return &file, nil
}

// GET /files/
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	var files []models.File
	if err := h.DB.Find(&files).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Files retrieved successfully",
		Data:    files,
	})
}

// GET /folders/{folder}/files/
func (h *Handler) ListFilesInFolder(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	if err := storage.ValidateNames(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	var files []models.File
	if err := h.DB.Where("folder = ?", folderName).Find(&files).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Files retrieved successfully",
		Data:    files,
	})
}

// GET /folders/{folder}/files/{filename}
func (h *Handler) GetFileInfo(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")
	if err := storage.ValidateNames(folderName, filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	file, err := h.fileByName(folderName, filename)
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

// POST /folders/{folder}/files/
// UploadFile godoc
// @Summary Upload a file into a folder
// @Description Streams the file to the remote store with progress tracking; returns the stored object and its operation id.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param folder path string true "Folder name"
// @Param file formData file true "File to upload"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 422 {object} utils.Payload
// @Router /api/v1/folders/{folder}/files/ [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	username := middleware.Username(r)
	operationID := uuid.New().String()

	if err := storage.ValidateNames(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if _, err := h.folderByName(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.ErrorResponse(w, apperrors.Validation("Invalid file upload form"))
		return
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		utils.ErrorResponse(w, apperrors.Validation("No file provided"))
		return
	}
	defer src.Close()

	h.Hub.Update(operationID, username, progress.Info{
		Progress:  0,
		Status:    progress.StatusStarting,
		Filename:  header.Filename,
		Operation: "upload",
		Speed:     "0 B/s",
		ETA:       "calculating...",
	})

	// Stage the file locally before the remote transfer. The engine
	// removes the staging copy on every path.
	_ = os.MkdirAll(h.StagingDir, 0o755)
	safeFilename := filepath.Base(header.Filename)
	stagingPath := filepath.Join(h.StagingDir, safeFilename)

	dst, err := os.Create(stagingPath)
	if err != nil {
		h.Hub.Complete(operationID, username, false)
		utils.ErrorResponse(w, err)
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(stagingPath)
		h.Hub.Complete(operationID, username, false)
		utils.ErrorResponse(w, err)
		return
	}
	dst.Close()

	h.Hub.Update(operationID, username, progress.Info{
		Progress:  25,
		Status:    progress.StatusUploading,
		Filename:  header.Filename,
		Operation: "upload",
		Speed:     "uploading...",
		ETA:       "calculating...",
	})

	dbFile, err := h.Engine.Upload(r.Context(), stagingPath, folderName, username, operationID)
	if err != nil {
		h.Hub.Complete(operationID, username, false)
		utils.ErrorResponse(w, err)
		return
	}

	h.Hub.Complete(operationID, username, true)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File uploaded successfully",
		Data: map[string]any{
			"operation_id": operationID,
			"file":         dbFile,
			"status":       "completed",
		},
	})
}

// GET /folders/{folder}/files/{filename}/download
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")
	username := middleware.Username(r)
	operationID := uuid.New().String()

	if err := storage.ValidateNames(folderName, filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	file, err := h.fileByName(folderName, filename)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if file.Encrypted {
		var user models.User
		if err := h.DB.Where("username = ?", username).First(&user).Error; err != nil || !user.EncryptionEnabled {
			utils.ErrorResponse(w, apperrors.Authorization("This file is encrypted. Enable encryption on your account to download it."))
			return
		}
	}

	h.Hub.Update(operationID, username, progress.Info{
		Progress:  0,
		Status:    progress.StatusStarting,
		Filename:  filename,
		Operation: "download",
		Speed:     "0 B/s",
		ETA:       "calculating...",
	})

	downloadPath, originalName, err := h.Engine.Download(r.Context(), folderName, filename, username, operationID)
	if err != nil {
		h.Hub.Complete(operationID, username, false)
		utils.ErrorResponse(w, err)
		return
	}
	h.Hub.Complete(operationID, username, true)

	h.serveLocalCopy(w, r, downloadPath, originalName)
}

// serveLocalCopy streams the transient local file to the client and
// removes it afterwards; the local copy only exists for this response.
func (h *Handler) serveLocalCopy(w http.ResponseWriter, r *http.Request, path, downloadName string) {
	defer os.Remove(path)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	http.ServeFile(w, r, path)
}

// DELETE /folders/{folder}/files/{filename}
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")

	if err := storage.ValidateNames(folderName, filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if _, err := h.folderByName(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if err := h.Engine.Delete(r.Context(), folderName, filename); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: fmt.Sprintf("File '%s' deleted from folder '%s'", filename, folderName),
	})
}

// PUT /folders/{folder}/files/{filename}/rename
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")

	var input struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.NewName == "" {
		utils.ErrorResponse(w, apperrors.Validation("Missing new file name"))
		return
	}

	if err := storage.ValidateNames(folderName, filename, input.NewName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	file, err := h.fileByName(folderName, filename)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if _, err := h.fileByName(folderName, input.NewName); err == nil {
		utils.ErrorResponse(w, apperrors.Conflict(fmt.Sprintf("File '%s' already exists in folder '%s'", input.NewName, folderName)))
		return
	}

	if err := h.DB.Model(file).Update("filename", input.NewName).Error; err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: fmt.Sprintf("File '%s' renamed to '%s' in folder '%s'", filename, input.NewName, folderName),
	})
}

// POST /folders/{folder}/files/{filename}/move
func (h *Handler) MoveFile(w http.ResponseWriter, r *http.Request) {
	folderName := r.PathValue("folder")
	filename := r.PathValue("filename")

	var input struct {
		DestFolder string `json:"dest_folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.DestFolder == "" {
		utils.ErrorResponse(w, apperrors.Validation("Missing destination folder"))
		return
	}

	if err := storage.ValidateNames(folderName, filename, input.DestFolder); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	if _, err := h.folderByName(input.DestFolder); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if _, err := h.folderByName(folderName); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	file, err := h.fileByName(folderName, filename)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		return h.Index.MoveMember(tx, file, folderName, input.DestFolder)
	})
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: fmt.Sprintf("File '%s' moved from '%s' to '%s'", filename, folderName, input.DestFolder),
	})
}

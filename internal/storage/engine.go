package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/apperrors"
	"github.com/tgvault/tgvault/internal/blobstore"
	"github.com/tgvault/tgvault/internal/crypt"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/progress"
	"github.com/tgvault/tgvault/internal/utils"
	"gorm.io/gorm"
)

// sizeHint feeds the estimated-percentage heuristic when the remote store
// cannot report a total.
const sizeHint = 10 << 20

// ProgressReporter receives the engine's per-chunk progress events. The
// broadcast hub satisfies it; tests substitute a recorder.
type ProgressReporter interface {
	Update(operationID, principal string, info progress.Info)
	Complete(operationID, principal string, success bool)
}

// Engine orchestrates chunked transfers between local staging files and
// the remote blob store: transparent encryption, collision-free naming,
// progress reporting, and transactional metadata persistence.
type Engine struct {
	db          *gorm.DB
	store       blobstore.Store
	vault       *crypt.Vault
	index       *Index
	reporter    ProgressReporter
	downloadDir string
}

func NewEngine(db *gorm.DB, store blobstore.Store, vault *crypt.Vault, index *Index, reporter ProgressReporter, downloadDir string) *Engine {
	return &Engine{
		db:          db,
		store:       store,
		vault:       vault,
		index:       index,
		reporter:    reporter,
		downloadDir: downloadDir,
	}
}

// Upload streams the staged file at path into the remote store and
// persists the resulting stored object. The staging file is removed on
// every exit path, success or failure.
func (e *Engine) Upload(ctx context.Context, path, folderName, username, operationID string) (*models.File, error) {
	defer func() {
		if _, err := os.Stat(path); err == nil {
			_ = os.Remove(path)
		}
	}()

	encryptionEnabled := false
	var user models.User
	if err := e.db.Where("username = ?", username).First(&user).Error; err == nil {
		encryptionEnabled = user.EncryptionEnabled
	}

	encrypted := false
	if encryptionEnabled {
		encryptedPath, err := e.vault.EncryptFile(path)
		if err != nil {
			return nil, apperrors.Encryption("Could not encrypt file before upload", err)
		}
		path = encryptedPath
		encrypted = true
	}

	baseName := filepath.Base(path)
	originalName := baseName
	if encrypted {
		originalName = crypt.OriginalName(baseName)
	}

	var siblings []models.File
	if err := e.db.Where("folder = ?", folderName).Find(&siblings).Error; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(siblings))
	for _, f := range siblings {
		names = append(names, f.Filename)
	}
	finalName := ResolveName(names, baseName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := info.Size()

	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	objectID, err := e.store.UploadChunked(ctx, src, size, blobstore.ObjectMetadata{
		Filename: finalName,
		Folder:   folderName,
	}, e.uploadProgress(operationID, username, finalName))
	if err != nil {
		return nil, classifyUpload(err)
	}

	dbFile := models.File{
		Folder:       folderName,
		Filename:     finalName,
		ObjectID:     objectID,
		Size:         size,
		Encrypted:    encrypted,
		OriginalName: originalName,
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dbFile).Error; err != nil {
			return err
		}
		return e.index.AddMember(tx, folderName, objectID)
	})
	if err != nil {
		// The remote copy exists but the metadata write failed; log the
		// orphaned object id so it can be reclaimed manually.
		log.Error().Err(err).Str("object_id", objectID).Msg("Failed to persist uploaded object")
		return nil, err
	}

	return &dbFile, nil
}

// Download fetches the stored object into the local download directory and
// returns its path plus the client-facing original name. The caller owns
// the local copy and deletes it after serving.
func (e *Engine) Download(ctx context.Context, folderName, filename, username, operationID string) (string, string, error) {
	var dbFile models.File
	if err := e.db.Where("folder = ? AND filename = ?", folderName, filename).First(&dbFile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", apperrors.NotFound("File", filename)
		}
		return "", "", err
	}

	if err := os.MkdirAll(e.downloadDir, 0o755); err != nil {
		return "", "", err
	}
	downloadPath := filepath.Join(e.downloadDir, dbFile.Filename)

	dst, err := os.Create(downloadPath)
	if err != nil {
		return "", "", err
	}

	_, err = e.store.FetchChunked(ctx, dbFile.ObjectID, dst, e.downloadProgress(operationID, username, filename))
	dst.Close()
	if err != nil {
		_ = os.Remove(downloadPath)
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return "", "", apperrors.NotFound("File", filename)
		}
		return "", "", apperrors.External("Blob store", fmt.Sprintf("Download failed: %v", err))
	}

	if dbFile.Encrypted {
		if err := e.vault.DecryptFile(downloadPath); err != nil {
			_ = os.Remove(downloadPath)
			if errors.Is(err, crypt.ErrKeyMissing) {
				return "", "", apperrors.KeyMissing(err)
			}
			return "", "", apperrors.Encryption("Could not decrypt file", err)
		}
	}

	return downloadPath, dbFile.OriginalName, nil
}

// Delete removes the remote object, then the stored-object record and its
// membership row. A remote failure leaves the local record untouched so
// the remote copy is never silently orphaned.
func (e *Engine) Delete(ctx context.Context, folderName, filename string) error {
	var dbFile models.File
	if err := e.db.Where("folder = ? AND filename = ?", folderName, filename).First(&dbFile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("File", filename)
		}
		return err
	}

	if err := e.store.DeleteByID(ctx, dbFile.ObjectID); err != nil {
		return apperrors.External("Blob store", fmt.Sprintf("Remote deletion failed: %v", err))
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&dbFile).Error; err != nil {
			return err
		}
		return e.index.RemoveMember(tx, folderName, dbFile.ObjectID)
	})
}

// PurgeFolder deletes every remote object the folder references, then the
// contained file rows and membership rows. The Folder row itself stays;
// the caller removes it once the purge succeeds.
func (e *Engine) PurgeFolder(ctx context.Context, folderName string) error {
	ids, err := e.index.ObjectIDs(folderName)
	if err != nil {
		return err
	}

	if err := deleteRemoteObjects(ctx, e.store, ids); err != nil {
		return apperrors.External("Blob store", fmt.Sprintf("Folder purge failed: %v", err))
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		folder, err := e.index.folderByName(tx, folderName)
		if err != nil {
			return err
		}
		if err := tx.Where("folder_id = ?", folder.ID).Delete(&models.FolderObject{}).Error; err != nil {
			return err
		}
		if err := tx.Where("folder = ?", folderName).Delete(&models.File{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Folder{}).Where("id = ?", folder.ID).Update("file_count", 0).Error
	})
}

func (e *Engine) uploadProgress(operationID, username, filename string) blobstore.ProgressFunc {
	if operationID == "" {
		return nil
	}
	return func(sent, total int64) {
		info := progress.Info{
			Status:    progress.StatusUploading,
			Filename:  filename,
			Operation: "upload",
			ETA:       "uploading...",
		}
		if total <= 0 {
			info.Progress = capInt(25+int(sent*60/sizeHint), 85)
			info.Speed = utils.HumanReadableSize(sent) + " uploaded"
		} else {
			info.Progress = capInt(25+int(sent*70/total), 95)
			info.Speed = utils.HumanReadableSize(sent) + "/" + utils.HumanReadableSize(total)
		}
		e.reporter.Update(operationID, username, info)
	}
}

// Anonymous share downloads pass an empty operation id; they get no
// progress reporting because the visitor has no subscription.
func (e *Engine) downloadProgress(operationID, username, filename string) blobstore.ProgressFunc {
	if operationID == "" {
		return nil
	}
	return func(got, total int64) {
		info := progress.Info{
			Status:    progress.StatusDownloading,
			Filename:  filename,
			Operation: "download",
		}
		if total <= 0 {
			info.Progress = capInt(int(got*80/sizeHint), 85)
			info.Speed = utils.HumanReadableSize(got) + " downloaded"
			info.ETA = "calculating..."
		} else {
			info.Progress = capInt(int(got*95/total), 95)
			info.Speed = utils.HumanReadableSize(got) + "/" + utils.HumanReadableSize(total)
			info.ETA = "downloading..."
		}
		e.reporter.Update(operationID, username, info)
	}
}

func capInt(n, limit int) int {
	if n > limit {
		return limit
	}
	return n
}

// classifyUpload maps blob-store failures onto the upload sub-reasons the
// HTTP layer distinguishes.
func classifyUpload(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrObjectTooLarge):
		return apperrors.Upload("UPLOAD_TOO_LARGE", "File is too large for the remote store.", err)
	case errors.Is(err, blobstore.ErrUnsupportedMedia):
		return apperrors.Upload("UPLOAD_UNSUPPORTED_MEDIA", "The remote store rejected this file type.", err)
	case errors.Is(err, blobstore.ErrNotAuthorized):
		return apperrors.Upload("UPLOAD_NOT_AUTHORIZED", "Remote store not authorized. Connect the storage account first.", err)
	default:
		return apperrors.External("Blob store", fmt.Sprintf("Upload failed: %v", err))
	}
}

package storage

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/apperrors"
	"github.com/tgvault/tgvault/internal/models"
	"gorm.io/gorm"
)

// Index maintains the folder → {object ids} mapping and the aggregate
// file counts. Membership lives in ordered folder_objects rows keyed by
// folder id; all mutations run inside the transaction handed in, so a
// caller composing several steps (move, upload persist) gets one atomic
// unit.
type Index struct {
	db *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

func (ix *Index) folderByName(tx *gorm.DB, name string) (*models.Folder, error) {
	var folder models.Folder
	if err := tx.Where("name = ?", name).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Folder", name)
		}
		return nil, err
	}
	return &folder, nil
}

// AddMember appends objectID to the folder's ordered id list and bumps the
// count. Inserting an id that is already present is a no-op.
func (ix *Index) AddMember(tx *gorm.DB, folderName, objectID string) error {
	folder, err := ix.folderByName(tx, folderName)
	if err != nil {
		return err
	}

	var existing int64
	if err := tx.Model(&models.FolderObject{}).
		Where("folder_id = ? AND object_id = ?", folder.ID, objectID).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	var maxPos int
	row := tx.Model(&models.FolderObject{}).
		Where("folder_id = ?", folder.ID).
		Select("COALESCE(MAX(position), 0)").
		Row()
	if err := row.Scan(&maxPos); err != nil {
		return err
	}

	member := models.FolderObject{
		FolderID: folder.ID,
		ObjectID: objectID,
		Position: maxPos + 1,
	}
	if err := tx.Create(&member).Error; err != nil {
		return err
	}

	return tx.Model(&models.Folder{}).
		Where("id = ?", folder.ID).
		Update("file_count", gorm.Expr("file_count + 1")).Error
}

// RemoveMember drops objectID from the folder's id list and decrements the
// count. A decrement below zero means the index and the object rows have
// drifted; that inconsistency is logged as a bug and the count pinned at
// zero instead of going negative.
func (ix *Index) RemoveMember(tx *gorm.DB, folderName, objectID string) error {
	folder, err := ix.folderByName(tx, folderName)
	if err != nil {
		return err
	}

	if err := tx.Where("folder_id = ? AND object_id = ?", folder.ID, objectID).
		Delete(&models.FolderObject{}).Error; err != nil {
		return err
	}

	if folder.FileCount <= 0 {
		log.Error().
			Str("folder", folderName).
			Str("object_id", objectID).
			Msg("Membership invariant violation: removing from a folder with zero count")
		return tx.Model(&models.Folder{}).
			Where("id = ?", folder.ID).
			Update("file_count", 0).Error
	}

	return tx.Model(&models.Folder{}).
		Where("id = ?", folder.ID).
		Update("file_count", gorm.Expr("file_count - 1")).Error
}

// MoveMember relocates a file between folders as one logical transaction:
// both counts, both id lists, and the file's folder reference change
// together or not at all.
func (ix *Index) MoveMember(tx *gorm.DB, file *models.File, fromFolder, toFolder string) error {
	if err := ix.RemoveMember(tx, fromFolder, file.ObjectID); err != nil {
		return err
	}
	if err := ix.AddMember(tx, toFolder, file.ObjectID); err != nil {
		return err
	}
	return tx.Model(&models.File{}).
		Where("id = ?", file.ID).
		Update("folder", toFolder).Error
}

// RenameFolder cascades a folder rename to every contained file's folder
// reference in one bulk update. The Folder row's own name is the caller's
// responsibility; membership rows are keyed by folder id and need no
// change.
func (ix *Index) RenameFolder(tx *gorm.DB, oldName, newName string) error {
	return tx.Model(&models.File{}).
		Where("folder = ?", oldName).
		Update("folder", newName).Error
}

// ObjectIDs returns the folder's remote object ids in insertion order.
func (ix *Index) ObjectIDs(folderName string) ([]string, error) {
	folder, err := ix.folderByName(ix.db, folderName)
	if err != nil {
		return nil, err
	}

	var members []models.FolderObject
	if err := ix.db.Where("folder_id = ?", folder.ID).
		Order("position").
		Find(&members).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ObjectID)
	}
	return ids, nil
}

// UsedSpace sums the stored sizes of the folder's member objects.
func (ix *Index) UsedSpace(folderName string) (int64, error) {
	ids, err := ix.ObjectIDs(folderName)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var total int64
	row := ix.db.Model(&models.File{}).
		Where("object_id IN ?", ids).
		Select("COALESCE(SUM(size), 0)").
		Row()
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// AllUsedSpace reports the used space of every folder.
func (ix *Index) AllUsedSpace() (map[string]int64, error) {
	var folders []models.Folder
	if err := ix.db.Find(&folders).Error; err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(folders))
	for _, folder := range folders {
		space, err := ix.UsedSpace(folder.Name)
		if err != nil {
			return nil, err
		}
		result[folder.Name] = space
	}
	return result, nil
}

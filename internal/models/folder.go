package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Folder struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	FileCount int       `json:"fileCount" gorm:"default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FolderObject is one membership row: the folder's ordered list of remote
// object ids, kept in sync with the File rows whose Folder matches.
type FolderObject struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FolderID uuid.UUID `json:"folderId" gorm:"type:uuid;index;not null;uniqueIndex:idx_folder_object"`
	ObjectID string    `json:"objectId" gorm:"not null;uniqueIndex:idx_folder_object"`
	Position int       `json:"position" gorm:"not null"`
}

func (fo *FolderObject) BeforeCreate(tx *gorm.DB) error {
	if fo.ID == uuid.Nil {
		fo.ID = uuid.New()
	}
	return nil
}

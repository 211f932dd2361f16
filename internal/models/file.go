package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is one stored object: a single artifact uploaded to the remote
// store. (Folder, Filename) is unique among live rows; ObjectID is the
// remote store's identifier for the durable copy of the bytes.
type File struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Folder       string    `json:"folder" gorm:"index;not null;uniqueIndex:idx_folder_filename"`
	Filename     string    `json:"filename" gorm:"not null;uniqueIndex:idx_folder_filename"`
	ObjectID     string    `json:"objectId" gorm:"index;not null"`
	Size         int64     `json:"size" gorm:"not null"` // bytes of the stored (possibly encrypted) payload
	Encrypted    bool      `json:"encrypted" gorm:"default:false"`
	OriginalName string    `json:"originalName" gorm:"not null"`
	UploadedAt   time.Time `json:"uploadedAt" gorm:"autoCreateTime"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

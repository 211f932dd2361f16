package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ShareScopeFile   = "file"
	ShareScopeFolder = "folder"
)

// ShareToken is the server-side record of an issued share capability.
// Rows are never deleted; expiry and the revoked flag make them inert.
type ShareToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	Scope     string    `json:"scope" gorm:"not null"` // ShareScopeFile or ShareScopeFolder
	Folder    string    `json:"folder" gorm:"not null"`
	Filename  string    `json:"filename"`
	Owner     string    `json:"owner" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	Revoked   bool      `json:"revoked" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (t *ShareToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username          string    `json:"username" gorm:"uniqueIndex;not null"`
	Password          string    `json:"-" gorm:"not null"`
	EncryptionEnabled bool      `json:"encryptionEnabled" gorm:"default:false"`
	CreatedAt         time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

package handlers

import (
	"time"

	"github.com/tgvault/tgvault/internal/blobstore"
	"github.com/tgvault/tgvault/internal/progress"
	"github.com/tgvault/tgvault/internal/share"
	"github.com/tgvault/tgvault/internal/storage"
	"gorm.io/gorm"
)

// Handler carries the wired collaborators every endpoint needs. Built once
// in main and shared; nothing here is request-scoped.
type Handler struct {
	DB          *gorm.DB
	Engine      *storage.Engine
	Index       *storage.Index
	Hub         *progress.Hub
	Gate        *share.Gate
	Store       blobstore.Store
	JWTSecret   []byte
	StagingDir  string
	Environment string
	SessionTTL  time.Duration
}

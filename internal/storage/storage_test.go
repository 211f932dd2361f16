package storage

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tgvault/tgvault/internal/models"
	"github.com/tgvault/tgvault/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a private in-memory database with the full schema. The
// shared-cache DSN keeps gorm's connection pool on the same database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	return db
}

func createFolder(t *testing.T, db *gorm.DB, name string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Folder{Name: name}).Error)
}

func createUser(t *testing.T, db *gorm.DB, username string, encryption bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		Username:          username,
		Password:          "irrelevant",
		EncryptionEnabled: encryption,
	}).Error)
}

func folderCount(t *testing.T, db *gorm.DB, name string) int {
	t.Helper()
	var folder models.Folder
	require.NoError(t, db.Where("name = ?", name).First(&folder).Error)
	return folder.FileCount
}

package repositories

import (
	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDatabase opens the Postgres connection and runs migrations.
func ConnectDatabase(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Msg("Successfully connected to database")
	return db
}

// Migrate runs the schema migrations for every model. Split out so test
// suites can migrate an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.FolderObject{},
		&models.File{},
		&models.ShareToken{},
	)
}

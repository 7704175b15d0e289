package database

import (
	"errors"
	"fmt"
	"time"

	applog "ai-chat-api/internal/logger"
	"ai-chat-api/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration is one named, run-once schema change.
type Migration struct {
	Name string
	Run  func(tx *gorm.DB) error
}

// Migrations is applied in order; never reorder or rename an entry that has
// shipped.
var Migrations = []Migration{
	{
		Name: "0001_create_users",
		Run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.User{})
		},
	},
	{
		Name: "0002_create_chat_history",
		Run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.ChatRecord{})
		},
	},
}

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range Migrations {
		var record models.MigrationRecord
		result := db.Where("name = ?", migration.Name).First(&record)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			applog.LogEvent(logrus.InfoLevel, "Running migration", logrus.Fields{"migration": migration.Name})

			err := db.Transaction(func(tx *gorm.DB) error {
				if err := migration.Run(tx); err != nil {
					return err
				}

				return tx.Create(&models.MigrationRecord{Name: migration.Name, AppliedAt: time.Now()}).Error
			})

			if err != nil {
				return fmt.Errorf("migration '%s' failed: %w", migration.Name, err)
			}
		} else if result.Error != nil {
			return fmt.Errorf("failed to check migration status: %w", result.Error)
		}
	}

	return nil
}

package models

import "time"

// MigrationRecord marks a named schema migration as applied.
type MigrationRecord struct {
	ID        uint      `gorm:"primarykey"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRecord is one completed prompt/response exchange. Rows are only ever
// inserted; nothing updates or deletes them.
type ChatRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_history_user_provider,priority:1" json:"user_id"`
	Provider  Provider  `gorm:"type:varchar(20);not null;index:idx_chat_history_user_provider,priority:2" json:"provider"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ChatRecord) TableName() string {
	return "chat_history"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a managed Telegram group chat. TelegramChatID stays nil until the
// chat is bound; reconciliation skips unbound channels.
type Channel struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramChatID *int64     `gorm:"column:telegram_chat_id;uniqueIndex"`
	Name           string     `gorm:"column:name;type:text;not null;uniqueIndex"`
	Description    *string    `gorm:"column:description"`
	InviteLink     *string    `gorm:"column:invite_link"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Bound reports whether the channel has a platform chat attached.
func (c Channel) Bound() bool {
	return c.TelegramChatID != nil
}

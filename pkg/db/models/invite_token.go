package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteToken records a single-use invite link minted for one user and one
// channel. A fresh invite request supersedes any live tokens for the pair.
type InviteToken struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ChannelID  uuid.UUID  `gorm:"column:channel_id;type:uuid;not null;index"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Link       string     `gorm:"column:link;type:text;not null"`
	MaxUses    int        `gorm:"column:max_uses;not null;default:1"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	Superseded bool       `gorm:"column:superseded;not null;default:false"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Live reports whether the token can still admit its holder at the given time.
func (t InviteToken) Live(at time.Time) bool {
	return !t.Superseded && t.RevokedAt == nil && at.Before(t.ExpiresAt)
}

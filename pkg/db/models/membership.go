package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/pkg/enums"
)

// Membership is the authoritative record of a user's standing in one channel.
// Exactly one row exists per (channel, user) pair; state transitions update the
// row in place and bump TransitionedAt.
type Membership struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ChannelID      uuid.UUID             `gorm:"column:channel_id;type:uuid;not null;uniqueIndex:idx_memberships_channel_user,priority:1"`
	UserID         uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_memberships_channel_user,priority:2"`
	TelegramUserID int64                 `gorm:"column:telegram_user_id;not null"`
	State          enums.MembershipState `gorm:"column:state;type:text;not null"`
	TransitionedAt time.Time             `gorm:"column:transitioned_at;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/pkg/enums"
)

// User represents the canonical identity entity. TelegramID stays nil until
// the user completes platform registration.
type User struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramID        *int64           `gorm:"column:telegram_id;uniqueIndex"`
	PhoneNumber       string           `gorm:"column:phone_number;type:text;not null;uniqueIndex"`
	Username          *string          `gorm:"column:username"`
	FirstName         string           `gorm:"column:first_name;not null"`
	LastName          string           `gorm:"column:last_name;not null"`
	Position          *string          `gorm:"column:position"`
	RoleID            *uuid.UUID       `gorm:"column:role_id;type:uuid"`
	Status            enums.UserStatus `gorm:"column:status;type:text;not null;default:pending"`
	LastInviteRequest *time.Time       `gorm:"column:last_invite_request"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName is the display identity used in audit events.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Role maps an organizational position to the set of channels its holders may
// join.
type Role struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string     `gorm:"column:name;type:text;not null;uniqueIndex"`
	Description *string    `gorm:"column:description"`
	RoleGroupID *uuid.UUID `gorm:"column:role_group_id;type:uuid"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Channels []Channel `gorm:"many2many:role_channels;"`
}

// RoleGroup organizes related roles for directory browsing. It carries no
// reconciliation semantics.
type RoleGroup struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RoleChannel is the join row behind the role_channels many-to-many table.
type RoleChannel struct {
	RoleID    uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	ChannelID uuid.UUID `gorm:"column:channel_id;type:uuid;primaryKey"`
}

// TableName keeps the join table name in sync with the many2many tag on Role.
func (RoleChannel) TableName() string {
	return "role_channels"
}

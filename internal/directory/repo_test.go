//go:build db
// +build db

package directory

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("CHATGATE_DB_DSN")
	if dsn == "" {
		t.Skip("CHATGATE_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func seedRoleWithChannel(t *testing.T, tx *gorm.DB) (*models.Role, *models.Channel) {
	t.Helper()

	role := &models.Role{ID: uuid.New(), Name: fmt.Sprintf("cg_role_%s", uuid.NewString()[:8])}
	if err := tx.Create(role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}

	chatID := int64(-1005678)
	channel := &models.Channel{
		ID:             uuid.New(),
		TelegramChatID: &chatID,
		Name:           fmt.Sprintf("cg_chan_%s", uuid.NewString()[:8]),
	}
	if err := tx.Create(channel).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}

	if err := tx.Create(&models.RoleChannel{RoleID: role.ID, ChannelID: channel.ID}).Error; err != nil {
		t.Fatalf("map role to channel: %v", err)
	}
	return role, channel
}

func TestRoleChannelMapping(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	role, channel := seedRoleWithChannel(t, tx)
	repo := NewRoleRepository(tx)

	channels, err := repo.ChannelsForRole(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("channels for role: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != channel.ID {
		t.Fatalf("expected mapped channel, got %+v", channels)
	}
}

func TestApprovedTelegramIDsForChannel(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	role, channel := seedRoleWithChannel(t, tx)
	ctx := context.Background()

	tgID := int64(777)
	approved := &models.User{
		ID:          uuid.New(),
		TelegramID:  &tgID,
		PhoneNumber: fmt.Sprintf("+7001%s", uuid.NewString()[:8]),
		FirstName:   "Approved",
		LastName:    "Holder",
		RoleID:      &role.ID,
		Status:      enums.UserStatusApproved,
	}
	if err := tx.Create(approved).Error; err != nil {
		t.Fatalf("create approved user: %v", err)
	}

	fired := &models.User{
		ID:          uuid.New(),
		PhoneNumber: fmt.Sprintf("+7002%s", uuid.NewString()[:8]),
		FirstName:   "Fired",
		LastName:    "Holder",
		RoleID:      &role.ID,
		Status:      enums.UserStatusFired,
	}
	if err := tx.Create(fired).Error; err != nil {
		t.Fatalf("create fired user: %v", err)
	}

	users := NewUserRepository(tx)
	ids, err := users.ApprovedTelegramIDsForChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("approved ids: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected only the approved user, got %d entries", len(ids))
	}
	if got, ok := ids[tgID]; !ok || got != approved.ID {
		t.Fatalf("expected approved mapping for %d, got %+v", tgID, ids)
	}
}

func TestLastInviteRequestStamp(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	ctx := context.Background()
	user := &models.User{
		ID:          uuid.New(),
		PhoneNumber: fmt.Sprintf("+7003%s", uuid.NewString()[:8]),
		FirstName:   "Invite",
		LastName:    "Seeker",
		Status:      enums.UserStatusApproved,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	repo := NewUserRepository(tx)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SetLastInviteRequest(ctx, user.ID, at); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastInviteRequest == nil || !got.LastInviteRequest.Equal(at) {
		t.Fatalf("expected stamp %v, got %v", at, got.LastInviteRequest)
	}
}

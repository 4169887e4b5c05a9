package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
)

// UserRepository exposes the user reads and narrow writes the engine needs.
// Full user CRUD belongs to the admin surface, not the engine.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository binds the repo to the provided GORM connection.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user, or nil when absent.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByTelegramID resolves a platform identity to a user, or nil when unknown.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetLastInviteRequest stamps the invite cooldown anchor.
func (r *UserRepository) SetLastInviteRequest(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_invite_request", at.UTC()).Error
}

// ApprovedTelegramIDsForChannel returns the platform ids authorized to sit in
// the channel: approved users whose role maps to it.
func (r *UserRepository) ApprovedTelegramIDsForChannel(ctx context.Context, channelID uuid.UUID) (map[int64]uuid.UUID, error) {
	type row struct {
		ID         uuid.UUID
		TelegramID *int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.id, users.telegram_id").
		Joins("JOIN role_channels ON role_channels.role_id = users.role_id").
		Where("role_channels.channel_id = ?", channelID).
		Where("users.status = ?", enums.UserStatusApproved).
		Where("users.telegram_id IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	approved := make(map[int64]uuid.UUID, len(rows))
	for _, r := range rows {
		if r.TelegramID != nil {
			approved[*r.TelegramID] = r.ID
		}
	}
	return approved, nil
}

package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
)

// ChannelRepository exposes channel reads plus the narrow writes the engine
// performs (chat binding, invite-link cache).
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository binds the repo to the provided GORM connection.
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetByID retrieves a channel, or nil when absent.
func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetByChatID resolves a platform chat to a channel, or nil when unbound.
func (r *ChannelRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListBound returns every channel with a platform chat attached, the audit
// loop's working set.
func (r *ChannelRepository) ListBound(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Where("telegram_chat_id IS NOT NULL").
		Order("name").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// BindChat attaches the platform chat id to the channel.
func (r *ChannelRepository) BindChat(ctx context.Context, id uuid.UUID, chatID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", id).
		Update("telegram_chat_id", chatID).Error
}

// CacheInviteLink stores the channel's reusable invite link.
func (r *ChannelRepository) CacheInviteLink(ctx context.Context, id uuid.UUID, link string) error {
	return r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", id).
		Update("invite_link", link).Error
}

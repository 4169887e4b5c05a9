package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
)

// Repository is the authoritative store of per-channel membership standing.
// A single row exists per (channel, user) pair; transitions rewrite it.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get retrieves the membership row for the pair, or nil when none exists.
func (r *Repository) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// Transition moves the pair to the given state, creating the row when the
// pair has no history yet. Re-granting a kicked or left user reactivates the
// existing row rather than inserting a second one.
func (r *Repository) Transition(ctx context.Context, channelID, userID uuid.UUID, telegramUserID int64, state enums.MembershipState) (*models.Membership, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("invalid membership state %q", state)
	}

	existing, err := r.Get(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	at := r.now().UTC()

	if existing == nil {
		membership := &models.Membership{
			ID:             uuid.New(),
			ChannelID:      channelID,
			UserID:         userID,
			TelegramUserID: telegramUserID,
			State:          state,
			TransitionedAt: at,
		}
		if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
			return nil, err
		}
		return membership, nil
	}

	updates := map[string]any{
		"state":            state,
		"telegram_user_id": telegramUserID,
		"transitioned_at":  at,
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	existing.State = state
	existing.TelegramUserID = telegramUserID
	existing.TransitionedAt = at
	return existing, nil
}

// FindByTelegramID returns the row for a platform identity in a channel, or
// nil when the identity has no history there.
func (r *Repository) FindByTelegramID(ctx context.Context, channelID uuid.UUID, telegramUserID int64) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND telegram_user_id = ?", channelID, telegramUserID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

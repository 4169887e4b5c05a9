package invites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
)

// Repository persists minted invite tokens.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a freshly minted token.
func (r *Repository) Create(ctx context.Context, token *models.InviteToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(token).Error
}

// SupersedeForUser marks every live token of the user superseded. A fresh
// invite request invalidates whatever was minted before.
func (r *Repository) SupersedeForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.InviteToken{}).
		Where("user_id = ? AND superseded = ? AND revoked_at IS NULL", userID, false).
		Update("superseded", true).Error
}

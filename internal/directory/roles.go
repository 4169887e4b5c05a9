package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
)

// RoleRepository resolves roles to the channels their holders may join.
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository binds the repo to the provided GORM connection.
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByID retrieves a role, or nil when absent.
func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ChannelsForRole returns the channels mapped to the role, bound or not.
func (r *RoleRepository) ChannelsForRole(ctx context.Context, roleID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Joins("JOIN role_channels ON role_channels.channel_id = channels.id").
		Where("role_channels.role_id = ?", roleID).
		Order("channels.name").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/internal/events"
	"github.com/antonvlasov/chatgate-backend/internal/governor"
	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

type inviteGateway interface {
	CreateBoundedInvite(ctx context.Context, chatID int64, ttl time.Duration, maxUses int) (platform.InviteLink, platform.Outcome)
}

type executor interface {
	Do(ctx context.Context, surface governor.Surface, op governor.Op) platform.Outcome
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetLastInviteRequest(ctx context.Context, id uuid.UUID, at time.Time) error
}

type roleStore interface {
	ChannelsForRole(ctx context.Context, roleID uuid.UUID) ([]models.Channel, error)
}

type tokenStore interface {
	Create(ctx context.Context, token *models.InviteToken) error
	SupersedeForUser(ctx context.Context, userID uuid.UUID) error
}

type eventSink interface {
	Emit(ctx context.Context, event events.AccessEvent)
}

// CooldownError reports an invite request rejected locally because the
// per-user cooldown has not elapsed. Remaining is the exact wait left.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("invite cooldown active, retry in %s", e.Remaining)
}

// ChannelInvite is the per-channel outcome of one invite request.
type ChannelInvite struct {
	ChannelID   uuid.UUID
	ChannelName string
	Link        string
	ExpiresAt   time.Time
	MaxUses     int
	OK          bool
	Skipped     bool
	Err         error
}

// IssueResult collects the per-channel invite outcomes for one request.
type IssueResult struct {
	UserID   uuid.UUID
	Invites  []ChannelInvite
	IssuedAt time.Time
}

// Complete reports whether every bound channel produced a link.
func (r *IssueResult) Complete() bool {
	if r == nil {
		return false
	}
	for _, inv := range r.Invites {
		if !inv.OK && !inv.Skipped {
			return false
		}
	}
	return true
}

// Params wires the issuer's collaborators.
type Params struct {
	Gateway  inviteGateway
	Executor executor
	Users    userStore
	Roles    roleStore
	Tokens   tokenStore
	Events   eventSink
	Logger   *logger.Logger
	Config   config.InvitesConfig
}

// Issuer mints single-use, TTL-bounded invite links across the channels of a
// user's role, under a per-user cooldown.
type Issuer struct {
	gw     inviteGateway
	exec   executor
	users  userStore
	roles  roleStore
	tokens tokenStore
	events eventSink
	logg   *logger.Logger

	ttl      time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewIssuer validates the collaborators and builds the issuer.
func NewIssuer(params Params) (*Issuer, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if params.Users == nil {
		return nil, errors.New("user store is required")
	}
	if params.Roles == nil {
		return nil, errors.New("role store is required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	ttl := params.Config.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	cooldown := params.Config.Cooldown
	if cooldown <= 0 {
		cooldown = 48 * time.Hour
	}

	return &Issuer{
		gw:       params.Gateway,
		exec:     params.Executor,
		users:    params.Users,
		roles:    params.Roles,
		tokens:   params.Tokens,
		events:   params.Events,
		logg:     params.Logger,
		ttl:      ttl,
		cooldown: cooldown,
		now:      time.Now,
	}, nil
}

// IssueForUser mints invites for every channel of the user's role. The
// cooldown is checked locally before any platform call; once an attempt is
// made the cooldown is consumed even if some channels fail.
func (i *Issuer) IssueForUser(ctx context.Context, userID uuid.UUID) (*IssueResult, error) {
	user, err := i.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %s not found", userID))
	}

	now := i.now().UTC()
	if user.LastInviteRequest != nil {
		elapsed := now.Sub(*user.LastInviteRequest)
		if elapsed < i.cooldown {
			return nil, &CooldownError{Remaining: i.cooldown - elapsed}
		}
	}

	if user.RoleID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user has no role assigned")
	}

	channels, err := i.roles.ChannelsForRole(ctx, *user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolving channels for role %s: %w", *user.RoleID, err)
	}

	// the attempt consumes the cooldown regardless of per-channel outcomes
	if err := i.users.SetLastInviteRequest(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("stamping invite request: %w", err)
	}
	if err := i.tokens.SupersedeForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("superseding prior tokens: %w", err)
	}

	result := &IssueResult{UserID: user.ID, IssuedAt: now}
	for _, channel := range channels {
		result.Invites = append(result.Invites, i.issueOne(ctx, user, channel))
	}

	if i.events != nil {
		i.events.Emit(ctx, events.AccessEvent{
			Type:   enums.AccessEventInvitesIssued,
			UserID: user.ID,
			RoleID: user.RoleID,
		})
	}
	return result, nil
}

func (i *Issuer) issueOne(ctx context.Context, user *models.User, channel models.Channel) ChannelInvite {
	inv := ChannelInvite{ChannelID: channel.ID, ChannelName: channel.Name}
	if !channel.Bound() {
		inv.Skipped = true
		inv.Err = pkgerrors.New(pkgerrors.CodeNoPlatformID, fmt.Sprintf("channel %s has no bound chat", channel.Name))
		return inv
	}

	chatID := *channel.TelegramChatID

	var link platform.InviteLink
	out := i.exec.Do(ctx, governor.SurfaceMutation, func(ctx context.Context) platform.Outcome {
		var innerOut platform.Outcome
		link, innerOut = i.gw.CreateBoundedInvite(ctx, chatID, i.ttl, 1)
		return innerOut
	})
	if !out.OK() {
		inv.Err = out.Err
		return inv
	}

	token := &models.InviteToken{
		ChannelID: channel.ID,
		UserID:    user.ID,
		Link:      link.Link,
		MaxUses:   link.MaxUses,
		ExpiresAt: link.ExpiresAt,
	}
	if err := i.tokens.Create(ctx, token); err != nil {
		inv.Err = fmt.Errorf("recording invite token: %w", err)
		return inv
	}

	inv.Link = link.Link
	inv.ExpiresAt = link.ExpiresAt
	inv.MaxUses = link.MaxUses
	inv.OK = true
	return inv
}

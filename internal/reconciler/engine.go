package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/internal/events"
	"github.com/antonvlasov/chatgate-backend/internal/governor"
	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

type gateway interface {
	Suspend(ctx context.Context, chatID, userID int64) platform.Outcome
	LiftSuspension(ctx context.Context, chatID, userID int64) platform.Outcome
}

type executor interface {
	Do(ctx context.Context, surface governor.Surface, op governor.Op) platform.Outcome
}

type ledgerStore interface {
	Transition(ctx context.Context, channelID, userID uuid.UUID, telegramUserID int64, state enums.MembershipState) (*models.Membership, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type roleStore interface {
	ChannelsForRole(ctx context.Context, roleID uuid.UUID) ([]models.Channel, error)
}

type eventSink interface {
	Emit(ctx context.Context, event events.AccessEvent)
}

// Params wires the engine's collaborators.
type Params struct {
	Gateway  gateway
	Executor executor
	Ledger   ledgerStore
	Users    userStore
	Roles    roleStore
	Events   eventSink
	Logger   *logger.Logger
}

// Engine applies grant / revoke / role-change transitions channel by channel.
// A failing channel never aborts the rest of the batch.
type Engine struct {
	gw     gateway
	exec   executor
	ledger ledgerStore
	users  userStore
	roles  roleStore
	events eventSink
	logg   *logger.Logger
}

// NewEngine validates the collaborators and builds the engine.
func NewEngine(params Params) (*Engine, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Users == nil {
		return nil, errors.New("user store is required")
	}
	if params.Roles == nil {
		return nil, errors.New("role store is required")
	}
	return &Engine{
		gw:     params.Gateway,
		exec:   params.Executor,
		ledger: params.Ledger,
		users:  params.Users,
		roles:  params.Roles,
		events: params.Events,
		logg:   params.Logger,
	}, nil
}

// ReconcileGrant lifts any suspension across the role's channels and records
// optimistic active membership. The user joins through an invite later; the
// grant only guarantees nothing blocks them.
func (e *Engine) ReconcileGrant(ctx context.Context, userID, roleID uuid.UUID) (*Result, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := newResult(userID)
	if user.TelegramID == nil {
		result.NoOp = true
		return result, nil
	}

	channels, err := e.roles.ChannelsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("resolving channels for role %s: %w", roleID, err)
	}

	e.grantChannels(ctx, user, channels, result)
	e.emit(ctx, enums.AccessEventGrantReconciled, user, &roleID, nil)
	return result, nil
}

// ReconcileRevoke kicks the user from the role's channels (suspend then lift,
// so rejoining stays possible after a future grant) and records left.
func (e *Engine) ReconcileRevoke(ctx context.Context, userID, roleID uuid.UUID) (*Result, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := newResult(userID)
	if user.TelegramID == nil {
		result.NoOp = true
		return result, nil
	}

	channels, err := e.roles.ChannelsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("resolving channels for role %s: %w", roleID, err)
	}

	e.revokeChannels(ctx, user, channels, result)
	e.emit(ctx, enums.AccessEventRevokeReconciled, user, &roleID, nil)
	return result, nil
}

// ReconcileRoleChange revokes over channels(old)\channels(new) and grants
// over channels(new)\channels(old). The intersection is untouched: no calls,
// no ledger writes. Both channel sets come from the role mapping captured
// here, before any transition runs.
func (e *Engine) ReconcileRoleChange(ctx context.Context, userID, oldRoleID, newRoleID uuid.UUID) (*Result, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := newResult(userID)
	if user.TelegramID == nil {
		result.NoOp = true
		return result, nil
	}

	oldChannels, err := e.roles.ChannelsForRole(ctx, oldRoleID)
	if err != nil {
		return nil, fmt.Errorf("resolving channels for role %s: %w", oldRoleID, err)
	}
	newChannels, err := e.roles.ChannelsForRole(ctx, newRoleID)
	if err != nil {
		return nil, fmt.Errorf("resolving channels for role %s: %w", newRoleID, err)
	}

	newSet := make(map[uuid.UUID]struct{}, len(newChannels))
	for _, ch := range newChannels {
		newSet[ch.ID] = struct{}{}
	}
	oldSet := make(map[uuid.UUID]struct{}, len(oldChannels))
	for _, ch := range oldChannels {
		oldSet[ch.ID] = struct{}{}
	}

	var toRevoke, toGrant []models.Channel
	for _, ch := range oldChannels {
		if _, keep := newSet[ch.ID]; !keep {
			toRevoke = append(toRevoke, ch)
		}
	}
	for _, ch := range newChannels {
		if _, had := oldSet[ch.ID]; !had {
			toGrant = append(toGrant, ch)
		}
	}

	e.revokeChannels(ctx, user, toRevoke, result)
	e.grantChannels(ctx, user, toGrant, result)
	e.emit(ctx, enums.AccessEventRoleChanged, user, &newRoleID, nil)
	return result, nil
}

func (e *Engine) grantChannels(ctx context.Context, user *models.User, channels []models.Channel, result *Result) {
	for _, channel := range channels {
		result.record(e.grantOne(ctx, user, channel))
	}
}

func (e *Engine) grantOne(ctx context.Context, user *models.User, channel models.Channel) ChannelResult {
	res := ChannelResult{ChannelID: channel.ID, ChannelName: channel.Name}
	if !channel.Bound() {
		res.Skipped = true
		res.Err = pkgerrors.New(pkgerrors.CodeNoPlatformID, fmt.Sprintf("channel %s has no bound chat", channel.Name))
		return res
	}

	chatID := *channel.TelegramChatID
	tgID := *user.TelegramID

	out := e.exec.Do(ctx, governor.SurfaceMutation, func(ctx context.Context) platform.Outcome {
		return e.gw.LiftSuspension(ctx, chatID, tgID)
	})
	if !out.OK() {
		res.Err = out.Err
		return res
	}

	if _, err := e.ledger.Transition(ctx, channel.ID, user.ID, tgID, enums.MembershipStateActive); err != nil {
		res.Err = fmt.Errorf("recording active membership: %w", err)
		return res
	}

	res.OK = true
	return res
}

func (e *Engine) revokeChannels(ctx context.Context, user *models.User, channels []models.Channel, result *Result) {
	for _, channel := range channels {
		result.record(e.revokeOne(ctx, user, channel))
	}
}

func (e *Engine) revokeOne(ctx context.Context, user *models.User, channel models.Channel) ChannelResult {
	res := ChannelResult{ChannelID: channel.ID, ChannelName: channel.Name}
	if !channel.Bound() {
		res.Skipped = true
		res.Err = pkgerrors.New(pkgerrors.CodeNoPlatformID, fmt.Sprintf("channel %s has no bound chat", channel.Name))
		return res
	}

	chatID := *channel.TelegramChatID
	tgID := *user.TelegramID

	out := e.exec.Do(ctx, governor.SurfaceMutation, func(ctx context.Context) platform.Outcome {
		return e.gw.Suspend(ctx, chatID, tgID)
	})
	// not-found means the identity was never in the chat; the revoke is
	// trivially satisfied and still recorded
	if !out.OK() && out.Status != platform.StatusNotFound {
		res.Err = out.Err
		return res
	}

	if _, err := e.ledger.Transition(ctx, channel.ID, user.ID, tgID, enums.MembershipStateLeft); err != nil {
		res.Err = fmt.Errorf("recording left membership: %w", err)
		return res
	}

	// lift immediately so a future grant lets the user rejoin; the eviction
	// already happened, so a failure here doesn't undo the revoke
	if out.OK() {
		liftOut := e.exec.Do(ctx, governor.SurfaceMutation, func(ctx context.Context) platform.Outcome {
			return e.gw.LiftSuspension(ctx, chatID, tgID)
		})
		if !liftOut.OK() && e.logg != nil {
			e.logg.Warn(e.logg.WithChannelID(ctx, channel.ID.String()), "suspension lift after kick failed")
		}
	}

	res.OK = true
	return res
}

func (e *Engine) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %s not found", userID))
	}
	return user, nil
}

func (e *Engine) emit(ctx context.Context, eventType enums.AccessEventType, user *models.User, roleID, channelID *uuid.UUID) {
	if e.events == nil {
		return
	}
	e.events.Emit(ctx, events.AccessEvent{
		Type:      eventType,
		UserID:    user.ID,
		RoleID:    roleID,
		ChannelID: channelID,
	})
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/antonvlasov/chatgate-backend/internal/events"
	"github.com/antonvlasov/chatgate-backend/internal/governor"
	"github.com/antonvlasov/chatgate-backend/internal/platform"
	"github.com/antonvlasov/chatgate-backend/pkg/db/models"
	"github.com/antonvlasov/chatgate-backend/pkg/enums"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
	"github.com/antonvlasov/chatgate-backend/pkg/metrics"
)

type auditGateway interface {
	ChannelAdministrators(ctx context.Context, chatID int64) ([]platform.Member, platform.Outcome)
	IsServiceAccountAdmin(ctx context.Context, chatID int64) (bool, platform.Outcome)
	Suspend(ctx context.Context, chatID, userID int64) platform.Outcome
}

type executor interface {
	Do(ctx context.Context, surface governor.Surface, op governor.Op) platform.Outcome
}

type channelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	ListBound(ctx context.Context) ([]models.Channel, error)
}

type approvalStore interface {
	ApprovedTelegramIDsForChannel(ctx context.Context, channelID uuid.UUID) (map[int64]uuid.UUID, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

type ledgerStore interface {
	Transition(ctx context.Context, channelID, userID uuid.UUID, telegramUserID int64, state enums.MembershipState) (*models.Membership, error)
	FindByTelegramID(ctx context.Context, channelID uuid.UUID, telegramUserID int64) (*models.Membership, error)
}

type eventSink interface {
	Emit(ctx context.Context, event events.AccessEvent)
}

// Report summarizes one channel audit.
type Report struct {
	ChannelID  uuid.UUID
	TotalSeen  int
	Authorized int
	Evicted    int
	Errors     int
}

// CycleReport aggregates one full audit pass over all bound channels.
// Skipped counts channels the service account cannot manage; Failed counts
// channels whose audit broke partway.
type CycleReport struct {
	Channels []Report
	Skipped  int
	Failed   int
}

// AuditorParams wires the auditor's collaborators.
type AuditorParams struct {
	Gateway  auditGateway
	Executor executor
	Channels channelStore
	Approved approvalStore
	Ledger   ledgerStore
	Events   eventSink
	Logger   *logger.Logger
	Metrics  *metrics.AuditMetrics
}

// Auditor corrects membership drift against the platform's administrator
// lists, the only membership view a service account can enumerate.
type Auditor struct {
	gw       auditGateway
	exec     executor
	channels channelStore
	approved approvalStore
	ledger   ledgerStore
	events   eventSink
	logg     *logger.Logger
	mets     *metrics.AuditMetrics
}

// NewAuditor validates the collaborators and builds the auditor.
func NewAuditor(params AuditorParams) (*Auditor, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if params.Channels == nil {
		return nil, errors.New("channel store is required")
	}
	if params.Approved == nil {
		return nil, errors.New("approval store is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Auditor{
		gw:       params.Gateway,
		exec:     params.Executor,
		channels: params.Channels,
		approved: params.Approved,
		ledger:   params.Ledger,
		events:   params.Events,
		logg:     params.Logger,
		mets:     params.Metrics,
	}, nil
}

// AuditOnce audits a single channel by id.
func (a *Auditor) AuditOnce(ctx context.Context, channelID uuid.UUID) (Report, error) {
	channel, err := a.channels.GetByID(ctx, channelID)
	if err != nil {
		return Report{ChannelID: channelID}, fmt.Errorf("loading channel %s: %w", channelID, err)
	}
	if channel == nil {
		return Report{ChannelID: channelID}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("channel %s not found", channelID))
	}
	if !channel.Bound() {
		return Report{ChannelID: channelID}, pkgerrors.New(pkgerrors.CodeNoPlatformID, fmt.Sprintf("channel %s has no bound chat", channel.Name))
	}
	return a.auditChannel(ctx, *channel)
}

// AuditAll runs one audit cycle over every bound channel. Per-channel
// failures are recorded on the report, not returned: a channel the service
// account cannot manage is skipped, any other failure marks the channel
// failed, and neither aborts the cycle. The returned error is reserved for
// the cycle itself being unable to run.
func (a *Auditor) AuditAll(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	channels, err := a.channels.ListBound(ctx)
	if err != nil {
		a.mets.ObserveCycle("error", time.Since(start))
		return CycleReport{}, fmt.Errorf("listing bound channels: %w", err)
	}

	var cycle CycleReport
	for _, channel := range channels {
		report, auditErr := a.auditChannel(ctx, channel)
		if auditErr != nil {
			chanCtx := a.logg.WithChannelID(ctx, channel.ID.String())
			if typed := pkgerrors.As(auditErr); typed != nil && typed.Code() == pkgerrors.CodePermissionDenied {
				cycle.Skipped++
				a.mets.IncChannel("skipped")
				a.logg.Warn(chanCtx, fmt.Sprintf("channel %s skipped: %s", channel.Name, auditErr))
			} else {
				cycle.Failed++
				a.mets.IncChannel("error")
				a.logg.Error(chanCtx, fmt.Sprintf("channel %s audit failed", channel.Name), auditErr)
			}
			a.mets.IncFailure(channel.Name)
			continue
		}
		cycle.Channels = append(cycle.Channels, report)
		a.mets.IncChannel("ok")
	}

	outcome := "ok"
	if cycle.Failed > 0 {
		outcome = "error"
	}
	a.mets.ObserveCycle(outcome, time.Since(start))

	reportCtx := a.logg.WithFields(ctx, map[string]any{
		"channels": len(channels),
		"skipped":  cycle.Skipped,
		"failed":   cycle.Failed,
	})
	a.logg.Info(reportCtx, "audit cycle complete")
	return cycle, nil
}

func (a *Auditor) auditChannel(ctx context.Context, channel models.Channel) (Report, error) {
	report := Report{ChannelID: channel.ID}
	chatID := *channel.TelegramChatID
	logCtx := a.logg.WithChannelID(a.logg.WithChatID(ctx, chatID), channel.ID.String())

	// without management rights the audit can only observe, so skip
	capable := false
	out := a.exec.Do(ctx, governor.SurfaceQuery, func(ctx context.Context) platform.Outcome {
		var innerOut platform.Outcome
		capable, innerOut = a.gw.IsServiceAccountAdmin(ctx, chatID)
		return innerOut
	})
	if !out.OK() {
		return report, out.Err
	}
	if !capable {
		return report, pkgerrors.New(pkgerrors.CodePermissionDenied, fmt.Sprintf("service account cannot manage channel %s", channel.Name))
	}

	var members []platform.Member
	out = a.exec.Do(ctx, governor.SurfaceQuery, func(ctx context.Context) platform.Outcome {
		var innerOut platform.Outcome
		members, innerOut = a.gw.ChannelAdministrators(ctx, chatID)
		return innerOut
	})
	if !out.OK() {
		return report, out.Err
	}

	approved, err := a.approved.ApprovedTelegramIDsForChannel(ctx, channel.ID)
	if err != nil {
		return report, fmt.Errorf("loading approved set: %w", err)
	}

	var errs error
	for _, member := range members {
		if member.IsBot || member.IsOwner {
			continue
		}
		report.TotalSeen++

		if _, ok := approved[member.UserID]; ok {
			report.Authorized++
			continue
		}

		if err := a.evict(logCtx, channel, member); err != nil {
			report.Errors++
			errs = multierr.Append(errs, err)
			continue
		}
		report.Evicted++
	}

	a.mets.IncEvictions(channel.Name, report.Evicted)
	a.logg.Info(a.logg.WithFields(logCtx, map[string]any{
		"seen":       report.TotalSeen,
		"authorized": report.Authorized,
		"evicted":    report.Evicted,
		"errors":     report.Errors,
	}), "channel audit complete")
	return report, errs
}

// evict suspends a non-approved identity. The suspension stays in place; a
// future grant lifts it.
func (a *Auditor) evict(ctx context.Context, channel models.Channel, member platform.Member) error {
	chatID := *channel.TelegramChatID
	out := a.exec.Do(ctx, governor.SurfaceMutation, func(ctx context.Context) platform.Outcome {
		return a.gw.Suspend(ctx, chatID, member.UserID)
	})
	if !out.OK() {
		return fmt.Errorf("evicting %d from %s: %w", member.UserID, channel.Name, out.Err)
	}

	userID, known := a.resolveUser(ctx, channel.ID, member.UserID)
	if !known {
		// an identity the directory has never seen is evicted without a record
		return nil
	}
	if _, err := a.ledger.Transition(ctx, channel.ID, userID, member.UserID, enums.MembershipStateKicked); err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "telegram_user_id", member.UserID), "recording eviction failed")
	}
	if a.events != nil {
		a.events.Emit(ctx, events.AccessEvent{
			Type:      enums.AccessEventMemberEvicted,
			UserID:    userID,
			ChannelID: &channel.ID,
			ChatID:    channel.TelegramChatID,
		})
	}
	return nil
}

// resolveUser maps a platform identity to a directory user: the ledger row
// for the channel when one exists, otherwise the directory itself, so an
// eviction is recorded even for a user with no membership history here.
func (a *Auditor) resolveUser(ctx context.Context, channelID uuid.UUID, telegramUserID int64) (uuid.UUID, bool) {
	if membership, err := a.ledger.FindByTelegramID(ctx, channelID, telegramUserID); err == nil && membership != nil {
		return membership.UserID, true
	}
	if user, err := a.approved.GetByTelegramID(ctx, telegramUserID); err == nil && user != nil {
		return user.ID, true
	}
	return uuid.Nil, false
}

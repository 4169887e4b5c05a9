package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/antonvlasov/chatgate-backend/pkg/config"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

const adminCacheTTL = 5 * time.Minute

var (
	errBotTokenRequired = errors.New("telegram bot token is required")
	errLoggerRequired   = errors.New("telegram logger is required")
)

// botAPI is the slice of the Telegram SDK the gateway depends on.
type botAPI interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatAdministrators(cfg tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
	GetMe() (tgbotapi.User, error)
}

// Member is one chat administrator as seen by the gateway.
type Member struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
	IsOwner   bool
}

// InviteLink is a minted single-use invite.
type InviteLink struct {
	Link      string
	ExpiresAt time.Time
	MaxUses   int
}

// Gateway exposes Telegram primitives with centralized logging and outcome
// classification. It never retries; pacing and retries belong to the governor.
type Gateway struct {
	bot    botAPI
	logger *logger.Logger

	selfOnce sync.Once
	selfID   int64
	selfErr  error

	mu         sync.Mutex
	adminCache map[int64]adminCacheEntry
	now        func() time.Time
}

type adminCacheEntry struct {
	canManage bool
	until     time.Time
}

// NewGateway initializes the Telegram wrapper and validates the credentials.
func NewGateway(ctx context.Context, cfg config.TelegramConfig, logg *logger.Logger) (*Gateway, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errBotTokenRequired
	}

	var bot *tgbotapi.BotAPI
	var err error
	if endpoint := strings.TrimSpace(cfg.APIEndpoint); endpoint != "" {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	} else {
		bot, err = tgbotapi.NewBotAPI(token)
	}
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot client: %w", err)
	}
	bot.Debug = cfg.Debug

	logg.Info(ctx, "telegram gateway initialized")
	return newGateway(bot, logg), nil
}

func newGateway(bot botAPI, logg *logger.Logger) *Gateway {
	return &Gateway{
		bot:        bot,
		logger:     logg,
		adminCache: make(map[int64]adminCacheEntry),
		now:        time.Now,
	}
}

// Suspend restricts the user's access by banning them from the chat.
func (g *Gateway) Suspend(ctx context.Context, chatID, userID int64) Outcome {
	if out := g.preflight(ctx, chatID, "suspend"); !out.OK() {
		return out
	}

	g.log(ctx, "request", "suspend", map[string]any{"chat_id": chatID, "user_id": userID})
	_, err := g.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	return g.finish(ctx, "suspend", chatID, err)
}

// LiftSuspension removes a prior restriction so the user may rejoin.
func (g *Gateway) LiftSuspension(ctx context.Context, chatID, userID int64) Outcome {
	if out := g.preflight(ctx, chatID, "lift_suspension"); !out.OK() {
		return out
	}

	g.log(ctx, "request", "lift_suspension", map[string]any{"chat_id": chatID, "user_id": userID})
	_, err := g.bot.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	})
	return g.finish(ctx, "lift_suspension", chatID, err)
}

// CreateBoundedInvite mints a single-use invite link with the given TTL.
func (g *Gateway) CreateBoundedInvite(ctx context.Context, chatID int64, ttl time.Duration, maxUses int) (InviteLink, Outcome) {
	if out := g.preflight(ctx, chatID, "create_invite"); !out.OK() {
		return InviteLink{}, out
	}
	if maxUses <= 0 {
		maxUses = 1
	}
	expiresAt := g.now().Add(ttl)

	g.log(ctx, "request", "create_invite", map[string]any{"chat_id": chatID, "member_limit": maxUses})
	resp, err := g.bot.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		ExpireDate:  int(expiresAt.Unix()),
		MemberLimit: maxUses,
	})
	out := g.finish(ctx, "create_invite", chatID, err)
	if !out.OK() {
		return InviteLink{}, out
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding invite link response")
		g.log(ctx, "error", "create_invite", map[string]any{"error": wrapped.Error()})
		return InviteLink{}, Outcome{Status: StatusTransient, Err: wrapped}
	}

	return InviteLink{
		Link:      link.InviteLink,
		ExpiresAt: expiresAt,
		MaxUses:   maxUses,
	}, out
}

// ChannelAdministrators returns the chat's administrator list. This is the
// only membership view available to a bot without per-member probing.
func (g *Gateway) ChannelAdministrators(ctx context.Context, chatID int64) ([]Member, Outcome) {
	g.log(ctx, "request", "chat_administrators", map[string]any{"chat_id": chatID})
	admins, err := g.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	out := g.finish(ctx, "chat_administrators", chatID, err)
	if !out.OK() {
		return nil, out
	}

	members := make([]Member, 0, len(admins))
	for _, admin := range admins {
		if admin.User == nil {
			continue
		}
		members = append(members, Member{
			UserID:    admin.User.ID,
			Username:  admin.User.UserName,
			FirstName: admin.User.FirstName,
			LastName:  admin.User.LastName,
			IsBot:     admin.User.IsBot,
			IsOwner:   admin.Status == "creator",
		})
	}
	return members, out
}

// IsServiceAccountAdmin reports whether the bot holds the rights needed for
// member management in the chat.
func (g *Gateway) IsServiceAccountAdmin(ctx context.Context, chatID int64) (bool, Outcome) {
	selfID, err := g.self()
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving service account identity")
		return false, Outcome{Status: StatusTransient, Err: wrapped}
	}

	admins, err := g.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	out := g.finish(ctx, "service_account_check", chatID, err)
	if !out.OK() {
		return false, out
	}

	for _, admin := range admins {
		if admin.User == nil || admin.User.ID != selfID {
			continue
		}
		if admin.Status == "creator" {
			return true, out
		}
		return admin.CanRestrictMembers && admin.CanInviteUsers, out
	}
	return false, out
}

// preflight verifies admin capability before spending a mutating call. The
// result is cached briefly so batches don't multiply administrator lookups.
func (g *Gateway) preflight(ctx context.Context, chatID int64, op string) Outcome {
	g.mu.Lock()
	entry, ok := g.adminCache[chatID]
	if ok && g.now().Before(entry.until) {
		g.mu.Unlock()
		if entry.canManage {
			return okOutcome()
		}
		return g.permissionDenied(ctx, chatID, op)
	}
	g.mu.Unlock()

	canManage, out := g.IsServiceAccountAdmin(ctx, chatID)
	if !out.OK() {
		return out
	}

	g.mu.Lock()
	g.adminCache[chatID] = adminCacheEntry{canManage: canManage, until: g.now().Add(adminCacheTTL)}
	g.mu.Unlock()

	if !canManage {
		return g.permissionDenied(ctx, chatID, op)
	}
	return okOutcome()
}

func (g *Gateway) permissionDenied(ctx context.Context, chatID int64, op string) Outcome {
	err := pkgerrors.New(pkgerrors.CodePermissionDenied, fmt.Sprintf("service account cannot %s in chat %d", op, chatID))
	g.log(ctx, "error", op, map[string]any{"chat_id": chatID, "error": err.Error()})
	return Outcome{Status: StatusPermissionDenied, Err: err}
}

// InvalidateAdminCache drops the cached capability for the chat. Callers use
// it after a permission-denied mutation so the next batch re-checks.
func (g *Gateway) InvalidateAdminCache(chatID int64) {
	g.mu.Lock()
	delete(g.adminCache, chatID)
	g.mu.Unlock()
}

func (g *Gateway) self() (int64, error) {
	g.selfOnce.Do(func() {
		me, err := g.bot.GetMe()
		if err != nil {
			g.selfErr = err
			return
		}
		g.selfID = me.ID
	})
	return g.selfID, g.selfErr
}

func (g *Gateway) finish(ctx context.Context, op string, chatID int64, err error) Outcome {
	out := classify(err, op)
	switch out.Status {
	case StatusOK:
		g.log(ctx, "response", op, map[string]any{"chat_id": chatID})
	case StatusPermissionDenied:
		g.InvalidateAdminCache(chatID)
		g.log(ctx, "error", op, map[string]any{"chat_id": chatID, "error": out.Err.Error()})
	default:
		g.log(ctx, "error", op, map[string]any{"chat_id": chatID, "error": out.Err.Error()})
	}
	return out
}

// classify maps a Telegram SDK error onto the outcome taxonomy.
func classify(err error, op string) Outcome {
	if err == nil {
		return okOutcome()
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch {
		case tgErr.RetryAfter > 0 || tgErr.Code == 429:
			retryAfter := time.Duration(tgErr.RetryAfter) * time.Second
			return Outcome{
				Status:     StatusRateLimited,
				RetryAfter: retryAfter,
				Err:        pkgerrors.Wrap(pkgerrors.CodeRateLimited, err, fmt.Sprintf("telegram %s rate limited", op)),
			}
		case tgErr.Code == 403:
			return Outcome{
				Status: StatusPermissionDenied,
				Err:    pkgerrors.Wrap(pkgerrors.CodePermissionDenied, err, fmt.Sprintf("telegram %s forbidden", op)),
			}
		case tgErr.Code == 400 && mentionsNotFound(tgErr.Message):
			return Outcome{
				Status: StatusNotFound,
				Err:    pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("telegram %s target missing", op)),
			}
		}
	}

	return Outcome{
		Status: StatusTransient,
		Err:    pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("telegram %s failed", op)),
	}
}

func mentionsNotFound(message string) bool {
	return strings.Contains(strings.ToLower(message), "not found")
}

func (g *Gateway) log(ctx context.Context, phase, op string, fields map[string]any) {
	if g == nil || g.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = g.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		g.logger.Error(ctx, fmt.Sprintf("telegram %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		g.logger.Info(ctx, fmt.Sprintf("telegram %s", phase))
	}
}

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
)

type fakeBot struct {
	self        tgbotapi.User
	admins      []tgbotapi.ChatMember
	adminsErr   error
	requestErr  error
	inviteLink  string
	requests    []tgbotapi.Chattable
	adminsCalls int
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	if _, ok := c.(tgbotapi.CreateChatInviteLinkConfig); ok {
		payload, _ := json.Marshal(tgbotapi.ChatInviteLink{InviteLink: f.inviteLink})
		return &tgbotapi.APIResponse{Ok: true, Result: payload}, nil
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(`true`)}, nil
}

func (f *fakeBot) GetChatAdministrators(cfg tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	f.adminsCalls++
	if f.adminsErr != nil {
		return nil, f.adminsErr
	}
	return f.admins, nil
}

func (f *fakeBot) GetMe() (tgbotapi.User, error) {
	return f.self, nil
}

func adminBot(selfID int64) *fakeBot {
	return &fakeBot{
		self: tgbotapi.User{ID: selfID, IsBot: true},
		admins: []tgbotapi.ChatMember{
			{
				User:               &tgbotapi.User{ID: selfID, IsBot: true},
				Status:             "administrator",
				CanRestrictMembers: true,
				CanInviteUsers:     true,
			},
			{
				User:   &tgbotapi.User{ID: 7, UserName: "owner"},
				Status: "creator",
			},
		},
		inviteLink: "https://t.me/+abc",
	}
}

func TestSuspendHappyPath(t *testing.T) {
	bot := adminBot(42)
	gw := newGateway(bot, nil)

	out := gw.Suspend(context.Background(), -100, 9)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}

	if len(bot.requests) != 1 {
		t.Fatalf("expected exactly one mutation request, got %d", len(bot.requests))
	}
	ban, ok := bot.requests[0].(tgbotapi.BanChatMemberConfig)
	if !ok {
		t.Fatalf("expected ban request, got %T", bot.requests[0])
	}
	if ban.ChatID != -100 || ban.UserID != 9 {
		t.Fatalf("unexpected ban target %+v", ban)
	}
}

func TestLiftSuspensionOnlyIfBanned(t *testing.T) {
	bot := adminBot(42)
	gw := newGateway(bot, nil)

	out := gw.LiftSuspension(context.Background(), -100, 9)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}
	unban, ok := bot.requests[0].(tgbotapi.UnbanChatMemberConfig)
	if !ok {
		t.Fatalf("expected unban request, got %T", bot.requests[0])
	}
	if !unban.OnlyIfBanned {
		t.Fatal("unban must be restricted to banned members")
	}
}

func TestPreflightBlocksMutationWithoutSpendingIt(t *testing.T) {
	bot := adminBot(42)
	// bot is listed but lacks restrict rights
	bot.admins[0].CanRestrictMembers = false
	gw := newGateway(bot, nil)

	out := gw.Suspend(context.Background(), -100, 9)
	if out.Status != StatusPermissionDenied {
		t.Fatalf("expected permission denied, got %+v", out)
	}
	if len(bot.requests) != 0 {
		t.Fatalf("mutation should not be spent on preflight failure, got %d requests", len(bot.requests))
	}
	if typed := pkgerrors.As(out.Err); typed == nil || typed.Code() != pkgerrors.CodePermissionDenied {
		t.Fatalf("expected coded permission error, got %v", out.Err)
	}
}

func TestPreflightCachesAdminLookup(t *testing.T) {
	bot := adminBot(42)
	gw := newGateway(bot, nil)

	ctx := context.Background()
	gw.Suspend(ctx, -100, 9)
	gw.Suspend(ctx, -100, 10)

	if bot.adminsCalls != 1 {
		t.Fatalf("expected one admin lookup for the batch, got %d", bot.adminsCalls)
	}
}

func TestClassifyRateLimited(t *testing.T) {
	bot := adminBot(42)
	bot.requestErr = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 7",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
	}
	gw := newGateway(bot, nil)

	out := gw.Suspend(context.Background(), -100, 9)
	if out.Status != StatusRateLimited {
		t.Fatalf("expected rate limited, got %+v", out)
	}
	if out.RetryAfter != 7*time.Second {
		t.Fatalf("expected retry-after 7s, got %v", out.RetryAfter)
	}
}

func TestClassifyPermissionDenied(t *testing.T) {
	out := classify(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot is not a member"}, "suspend")
	if out.Status != StatusPermissionDenied {
		t.Fatalf("expected permission denied, got %+v", out)
	}
}

func TestClassifyNotFound(t *testing.T) {
	out := classify(&tgbotapi.Error{Code: 400, Message: "Bad Request: user not found"}, "suspend")
	if out.Status != StatusNotFound {
		t.Fatalf("expected not found, got %+v", out)
	}
}

func TestClassifyTransient(t *testing.T) {
	out := classify(errors.New("connection reset"), "suspend")
	if out.Status != StatusTransient {
		t.Fatalf("expected transient, got %+v", out)
	}
	if !out.Retryable() {
		t.Fatal("transient outcomes should be retryable")
	}
}

func TestCreateBoundedInvite(t *testing.T) {
	bot := adminBot(42)
	gw := newGateway(bot, nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw.now = func() time.Time { return fixed }

	link, out := gw.CreateBoundedInvite(context.Background(), -100, 12*time.Hour, 0)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}
	if link.Link != "https://t.me/+abc" {
		t.Fatalf("unexpected link %q", link.Link)
	}
	if link.MaxUses != 1 {
		t.Fatalf("invites must default to single use, got %d", link.MaxUses)
	}
	if want := fixed.Add(12 * time.Hour); !link.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, link.ExpiresAt)
	}

	var create tgbotapi.CreateChatInviteLinkConfig
	for _, req := range bot.requests {
		if c, ok := req.(tgbotapi.CreateChatInviteLinkConfig); ok {
			create = c
		}
	}
	if create.MemberLimit != 1 {
		t.Fatalf("expected member limit 1, got %d", create.MemberLimit)
	}
	if create.ExpireDate != int(fixed.Add(12*time.Hour).Unix()) {
		t.Fatalf("unexpected expire date %d", create.ExpireDate)
	}
}

func TestChannelAdministratorsMapsMembers(t *testing.T) {
	bot := adminBot(42)
	gw := newGateway(bot, nil)

	members, out := gw.ChannelAdministrators(context.Background(), -100)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	var owner *Member
	for i := range members {
		if members[i].IsOwner {
			owner = &members[i]
		}
	}
	if owner == nil || owner.UserID != 7 {
		t.Fatalf("expected owner with id 7, got %+v", owner)
	}
}

func TestIsServiceAccountAdminOwnerCounts(t *testing.T) {
	bot := adminBot(42)
	bot.admins[0].Status = "creator"
	bot.admins[0].CanRestrictMembers = false
	gw := newGateway(bot, nil)

	ok, out := gw.IsServiceAccountAdmin(context.Background(), -100)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}
	if !ok {
		t.Fatal("chat owner should always count as capable")
	}
}

func TestIsServiceAccountAdminAbsent(t *testing.T) {
	bot := adminBot(42)
	bot.admins = bot.admins[1:]
	gw := newGateway(bot, nil)

	ok, out := gw.IsServiceAccountAdmin(context.Background(), -100)
	if !out.OK() {
		t.Fatalf("expected ok outcome, got %+v", out)
	}
	if ok {
		t.Fatal("bot missing from admin list must not be capable")
	}
}

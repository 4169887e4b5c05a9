package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/internal/reconciler"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

type testReconcileService struct {
	grantFn      func(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error)
	revokeFn     func(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error)
	roleChangeFn func(ctx context.Context, userID, oldRoleID, newRoleID uuid.UUID) (*reconciler.Result, error)
}

func (s *testReconcileService) ReconcileGrant(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error) {
	if s.grantFn != nil {
		return s.grantFn(ctx, userID, roleID)
	}
	return nil, nil
}

func (s *testReconcileService) ReconcileRevoke(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error) {
	if s.revokeFn != nil {
		return s.revokeFn(ctx, userID, roleID)
	}
	return nil, nil
}

func (s *testReconcileService) ReconcileRoleChange(ctx context.Context, userID, oldRoleID, newRoleID uuid.UUID) (*reconciler.Result, error) {
	if s.roleChangeFn != nil {
		return s.roleChangeFn(ctx, userID, oldRoleID, newRoleID)
	}
	return nil, nil
}

func testLog() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestReconcileGrantSuccess(t *testing.T) {
	userID := uuid.New()
	roleID := uuid.New()
	channelID := uuid.New()
	called := false
	svc := &testReconcileService{
		grantFn: func(ctx context.Context, uid, rid uuid.UUID) (*reconciler.Result, error) {
			called = true
			if uid != userID || rid != roleID {
				t.Fatalf("unexpected ids %s %s", uid, rid)
			}
			return &reconciler.Result{
				UserID: userID,
				Channels: map[uuid.UUID]reconciler.ChannelResult{
					channelID: {ChannelID: channelID, ChannelName: "general", OK: true},
				},
			}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","role_id":"` + roleID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/grant", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ReconcileGrant(svc, testLog())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data reconcileResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Complete || len(envelope.Data.Channels) != 1 {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
	if envelope.Data.Channels[0].ChannelName != "general" || !envelope.Data.Channels[0].OK {
		t.Fatalf("unexpected channel outcome: %+v", envelope.Data.Channels[0])
	}
}

func TestReconcileGrantRejectsMalformedBody(t *testing.T) {
	svc := &testReconcileService{
		grantFn: func(ctx context.Context, _, _ uuid.UUID) (*reconciler.Result, error) {
			t.Fatal("service must not be called on invalid input")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/grant", strings.NewReader(`{"user_id":"not-a-uuid"}`))
	resp := httptest.NewRecorder()

	ReconcileGrant(svc, testLog())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestParseIDRejectsMalformedValue(t *testing.T) {
	if _, err := parseID(uuid.NewString(), "user id"); err != nil {
		t.Fatalf("valid id must parse: %v", err)
	}

	id, err := parseID("not-a-uuid", "user id")
	if err == nil {
		t.Fatal("expected a validation error, got none")
	}
	if id != uuid.Nil {
		t.Fatalf("malformed input must yield the zero id, got %s", id)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestReconcileRoleChangeRejectsMalformedRoleID(t *testing.T) {
	svc := &testReconcileService{
		roleChangeFn: func(ctx context.Context, _, _, _ uuid.UUID) (*reconciler.Result, error) {
			t.Fatal("service must not be called on invalid input")
			return nil, nil
		},
	}

	body := `{"user_id":"` + uuid.NewString() + `","old_role_id":"not-a-uuid","new_role_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/role-change", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ReconcileRoleChange(svc, testLog())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestReconcileRevokePartialFailureShape(t *testing.T) {
	userID := uuid.New()
	roleID := uuid.New()
	okCh := uuid.New()
	failedCh := uuid.New()
	skippedCh := uuid.New()
	svc := &testReconcileService{
		revokeFn: func(ctx context.Context, _, _ uuid.UUID) (*reconciler.Result, error) {
			return &reconciler.Result{
				UserID: userID,
				Channels: map[uuid.UUID]reconciler.ChannelResult{
					okCh:      {ChannelID: okCh, ChannelName: "healthy", OK: true},
					failedCh:  {ChannelID: failedCh, ChannelName: "forbidden", Err: pkgerrors.New(pkgerrors.CodePermissionDenied, "bot demoted")},
					skippedCh: {ChannelID: skippedCh, ChannelName: "unbound", Skipped: true, Err: pkgerrors.New(pkgerrors.CodeNoPlatformID, "no chat bound")},
				},
			}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","role_id":"` + roleID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/revoke", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ReconcileRevoke(svc, testLog())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("partial failure is still a 200, got %d", resp.Code)
	}
	var envelope struct {
		Data reconcileResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Complete {
		t.Fatal("result with a failed channel must not report complete")
	}
	codes := map[string]string{}
	for _, ch := range envelope.Data.Channels {
		codes[ch.ChannelName] = ch.ErrorCode
	}
	if codes["forbidden"] != string(pkgerrors.CodePermissionDenied) {
		t.Fatalf("expected permission code, got %q", codes["forbidden"])
	}
	if codes["unbound"] != string(pkgerrors.CodeNoPlatformID) {
		t.Fatalf("expected no-platform-id code, got %q", codes["unbound"])
	}
}

func TestReconcileRoleChangePassesBothRoles(t *testing.T) {
	userID := uuid.New()
	oldRole := uuid.New()
	newRole := uuid.New()
	svc := &testReconcileService{
		roleChangeFn: func(ctx context.Context, uid, oldID, newID uuid.UUID) (*reconciler.Result, error) {
			if uid != userID || oldID != oldRole || newID != newRole {
				t.Fatalf("unexpected ids %s %s %s", uid, oldID, newID)
			}
			return &reconciler.Result{UserID: userID, Channels: map[uuid.UUID]reconciler.ChannelResult{}}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","old_role_id":"` + oldRole.String() + `","new_role_id":"` + newRole.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/role-change", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ReconcileRoleChange(svc, testLog())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReconcileGrantUnknownUser(t *testing.T) {
	svc := &testReconcileService{
		grantFn: func(ctx context.Context, _, _ uuid.UUID) (*reconciler.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		},
	}

	body := `{"user_id":"` + uuid.NewString() + `","role_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/grant", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ReconcileGrant(svc, testLog())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

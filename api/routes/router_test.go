package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/internal/audit"
	"github.com/antonvlasov/chatgate-backend/internal/invites"
	"github.com/antonvlasov/chatgate-backend/internal/reconciler"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

type stubReconciler struct{}

func (stubReconciler) ReconcileGrant(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error) {
	return &reconciler.Result{UserID: userID, Channels: map[uuid.UUID]reconciler.ChannelResult{}}, nil
}

func (stubReconciler) ReconcileRevoke(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error) {
	return &reconciler.Result{UserID: userID, Channels: map[uuid.UUID]reconciler.ChannelResult{}}, nil
}

func (stubReconciler) ReconcileRoleChange(ctx context.Context, userID, oldRoleID, newRoleID uuid.UUID) (*reconciler.Result, error) {
	return &reconciler.Result{UserID: userID, Channels: map[uuid.UUID]reconciler.ChannelResult{}}, nil
}

type stubInvites struct{}

func (stubInvites) IssueForUser(ctx context.Context, userID uuid.UUID) (*invites.IssueResult, error) {
	return &invites.IssueResult{UserID: userID}, nil
}

type stubAuditor struct{}

func (stubAuditor) AuditOnce(ctx context.Context, channelID uuid.UUID) (audit.Report, error) {
	return audit.Report{ChannelID: channelID}, nil
}

type stubScheduler struct{ running bool }

func (s *stubScheduler) Start(ctx context.Context) error { s.running = true; return nil }
func (s *stubScheduler) Stop()                           { s.running = false }
func (s *stubScheduler) Running() bool                   { return s.running }

func newTestRouter() http.Handler {
	return NewRouter(RouterParams{
		Config:     &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Reconciler: stubReconciler{},
		Invites:    stubInvites{},
		Auditor:    stubAuditor{},
		AuditSched: &stubScheduler{},
	})
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/health/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/reconcile/grant", `{"user_id":"` + uuid.NewString() + `","role_id":"` + uuid.NewString() + `"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/users/" + uuid.NewString() + "/invites", "", http.StatusOK},
		{http.MethodPost, "/api/v1/audit/channels/" + uuid.NewString() + "/run", "", http.StatusOK},
		{http.MethodPost, "/api/v1/audit/start", "", http.StatusOK},
		{http.MethodPost, "/api/v1/audit/stop", "", http.StatusOK},
		{http.MethodGet, "/api/v1/reconcile/grant", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		var req *http.Request
		if tc.body != "" {
			req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		} else {
			req = httptest.NewRequest(tc.method, tc.path, nil)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, resp.Code, resp.Body.String())
		}
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id header")
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antonvlasov/chatgate-backend/api/controllers"
	"github.com/antonvlasov/chatgate-backend/api/middleware"
	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/db"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
	"github.com/antonvlasov/chatgate-backend/pkg/redis"
)

type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *redis.Client
	Reconciler controllers.ReconcileService
	Invites    controllers.InviteService
	Auditor    controllers.AuditService
	AuditSched controllers.AuditScheduler
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		deps := map[string]controllers.Pinger{}
		if params.DB != nil {
			deps["db"] = params.DB
		}
		if params.Redis != nil {
			deps["redis"] = params.Redis
		}
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/grant", controllers.ReconcileGrant(params.Reconciler, logg))
			r.Post("/revoke", controllers.ReconcileRevoke(params.Reconciler, logg))
			r.Post("/role-change", controllers.ReconcileRoleChange(params.Reconciler, logg))
		})

		r.Post("/users/{userID}/invites", controllers.IssueInvites(params.Invites, logg))

		r.Route("/audit", func(r chi.Router) {
			r.Post("/channels/{channelID}/run", controllers.AuditRun(params.Auditor, logg))
			r.Post("/start", controllers.AuditStart(params.AuditSched, logg))
			r.Post("/stop", controllers.AuditStop(params.AuditSched, logg))
		})
	})

	return r
}

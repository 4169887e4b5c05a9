package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/api/responses"
	"github.com/antonvlasov/chatgate-backend/internal/audit"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

// AuditService is the surface the on-demand audit controller calls.
type AuditService interface {
	AuditOnce(ctx context.Context, channelID uuid.UUID) (audit.Report, error)
}

// AuditScheduler is the lifecycle surface of the periodic loop.
type AuditScheduler interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

type auditReportResponse struct {
	ChannelID  string `json:"channel_id"`
	TotalSeen  int    `json:"total_seen"`
	Authorized int    `json:"authorized"`
	Evicted    int    `json:"evicted"`
	Errors     int    `json:"errors"`
}

func AuditRun(svc AuditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawChannelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
		channelID, err := uuid.Parse(rawChannelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel id"))
			return
		}

		report, err := svc.AuditOnce(r.Context(), channelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auditReportResponse{
			ChannelID:  report.ChannelID.String(),
			TotalSeen:  report.TotalSeen,
			Authorized: report.Authorized,
			Evicted:    report.Evicted,
			Errors:     report.Errors,
		})
	}
}

func AuditStart(sched AuditScheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the loop must outlive the request
		if err := sched.Start(context.WithoutCancel(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "audit scheduler not started"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"running": true})
	}
}

func AuditStop(sched AuditScheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sched.Stop()
		responses.WriteSuccess(w, map[string]any{"running": sched.Running()})
	}
}

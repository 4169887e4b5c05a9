package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/api/responses"
	"github.com/antonvlasov/chatgate-backend/api/validators"
	"github.com/antonvlasov/chatgate-backend/internal/reconciler"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

// ReconcileService is the surface the reconcile controllers call.
type ReconcileService interface {
	ReconcileGrant(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error)
	ReconcileRevoke(ctx context.Context, userID, roleID uuid.UUID) (*reconciler.Result, error)
	ReconcileRoleChange(ctx context.Context, userID, oldRoleID, newRoleID uuid.UUID) (*reconciler.Result, error)
}

type grantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	RoleID string `json:"role_id" validate:"required,uuid"`
}

type roleChangeRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	OldRoleID string `json:"old_role_id" validate:"required,uuid"`
	NewRoleID string `json:"new_role_id" validate:"required,uuid"`
}

type channelOutcome struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name,omitempty"`
	OK          bool   `json:"ok"`
	Skipped     bool   `json:"skipped,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Error       string `json:"error,omitempty"`
}

type reconcileResponse struct {
	UserID   string           `json:"user_id"`
	NoOp     bool             `json:"no_op,omitempty"`
	Complete bool             `json:"complete"`
	Channels []channelOutcome `json:"channels"`
}

func parseID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}

func ReconcileGrant(svc ReconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body grantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseID(body.UserID, "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roleID, err := parseID(body.RoleID, "role id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReconcileGrant(r.Context(), userID, roleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}

func ReconcileRevoke(svc ReconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body grantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseID(body.UserID, "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roleID, err := parseID(body.RoleID, "role id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReconcileRevoke(r.Context(), userID, roleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}

func ReconcileRoleChange(svc ReconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body roleChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseID(body.UserID, "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		oldRoleID, err := parseID(body.OldRoleID, "old role id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newRoleID, err := parseID(body.NewRoleID, "new role id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReconcileRoleChange(r.Context(), userID, oldRoleID, newRoleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconcileResponse(result))
	}
}

func toReconcileResponse(result *reconciler.Result) reconcileResponse {
	resp := reconcileResponse{
		UserID:   result.UserID.String(),
		NoOp:     result.NoOp,
		Complete: result.Complete(),
		Channels: []channelOutcome{},
	}
	for _, ch := range result.Channels {
		out := channelOutcome{
			ChannelID:   ch.ChannelID.String(),
			ChannelName: ch.ChannelName,
			OK:          ch.OK,
			Skipped:     ch.Skipped,
		}
		if ch.Err != nil {
			out.Error = ch.Err.Error()
			if typed := pkgerrors.As(ch.Err); typed != nil {
				out.ErrorCode = string(typed.Code())
			}
		}
		resp.Channels = append(resp.Channels, out)
	}
	return resp
}

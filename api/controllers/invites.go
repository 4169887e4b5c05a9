package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/api/responses"
	"github.com/antonvlasov/chatgate-backend/internal/invites"
	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

// InviteService is the surface the invite controller calls.
type InviteService interface {
	IssueForUser(ctx context.Context, userID uuid.UUID) (*invites.IssueResult, error)
}

type inviteOutcome struct {
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name,omitempty"`
	Link        string     `json:"link,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxUses     int        `json:"max_uses,omitempty"`
	OK          bool       `json:"ok"`
	Skipped     bool       `json:"skipped,omitempty"`
	ErrorCode   string     `json:"error_code,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type inviteResponse struct {
	UserID   string          `json:"user_id"`
	IssuedAt time.Time       `json:"issued_at"`
	Complete bool            `json:"complete"`
	Invites  []inviteOutcome `json:"invites"`
}

func IssueInvites(svc InviteService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawUserID := strings.TrimSpace(chi.URLParam(r, "userID"))
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		result, err := svc.IssueForUser(r.Context(), userID)
		if err != nil {
			var cooldown *invites.CooldownError
			if errors.As(err, &cooldown) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeCooldown, cooldown.Error()).WithDetails(map[string]any{
						"retry_after_seconds": int64(cooldown.Remaining.Seconds()),
					}))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := inviteResponse{
			UserID:   result.UserID.String(),
			IssuedAt: result.IssuedAt,
			Complete: result.Complete(),
			Invites:  []inviteOutcome{},
		}
		for _, inv := range result.Invites {
			out := inviteOutcome{
				ChannelID:   inv.ChannelID.String(),
				ChannelName: inv.ChannelName,
				Link:        inv.Link,
				MaxUses:     inv.MaxUses,
				OK:          inv.OK,
				Skipped:     inv.Skipped,
			}
			if inv.OK {
				expires := inv.ExpiresAt
				out.ExpiresAt = &expires
			}
			if inv.Err != nil {
				out.Error = inv.Err.Error()
				if typed := pkgerrors.As(inv.Err); typed != nil {
					out.ErrorCode = string(typed.Code())
				}
			}
			resp.Invites = append(resp.Invites, out)
		}
		responses.WriteSuccess(w, resp)
	}
}

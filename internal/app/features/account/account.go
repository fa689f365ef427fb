// internal/app/features/account/account.go
package account

import (
	"errors"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/sweeper"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

type deletionStatus struct {
	RequestedAt   time.Time `json:"requested_at"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	RemainingDays int       `json:"remaining_days"`
}

type accountResponse struct {
	User     models.User     `json:"user"`
	Deletion *deletionStatus `json:"deletion,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, u models.User) {
	out := accountResponse{User: u}
	if u.DeleteRequestedAt != nil {
		at := u.DeleteRequestedAt.UTC()
		out.Deletion = &deletionStatus{
			RequestedAt:   at,
			ScheduledFor:  at.Add(sweeper.GracePeriod),
			RemainingDays: sweeper.RemainingDays(at, h.now()),
		}
	}
	apierrors.JSON(w, status, out)
}

// ServeAccount handles GET /api/account: the stored profile and, while a
// deletion is pending, how many days remain before it is carried out.
func (h *Handler) ServeAccount(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load account")
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if err != nil {
		h.writeErr(w, r, "load account", err)
		return
	}
	h.respond(w, http.StatusOK, u)
}

// HandleRequestDeletion handles POST /api/account/deletion. The account turns
// inactive now and is purged by the sweeper once the grace period ends.
func (h *Handler) HandleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "request deletion")
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if err != nil {
		h.writeErr(w, r, "load account", err)
		return
	}
	if u.DeleteRequestedAt != nil {
		h.respond(w, http.StatusOK, u)
		return
	}

	at := h.now()
	if err := h.Users.RequestDeletion(ctx, su.ID, at); err != nil {
		h.writeErr(w, r, "request deletion", err)
		return
	}
	h.AuditLog.DeletionRequested(ctx, r, su.ID)
	h.Log.Info("account deletion requested", zap.String("user_id", su.ID))

	u.Status = models.UserStatusInactive
	u.DeleteRequestedAt = &at
	h.respond(w, http.StatusAccepted, u)
}

// HandleCancelDeletion handles DELETE /api/account/deletion.
func (h *Handler) HandleCancelDeletion(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "cancel deletion")
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if err != nil {
		h.writeErr(w, r, "load account", err)
		return
	}
	if u.DeleteRequestedAt == nil {
		apierrors.Conflict(w, "no deletion is pending")
		return
	}
	if err := h.Users.CancelDeletion(ctx, su.ID); err != nil {
		h.writeErr(w, r, "cancel deletion", err)
		return
	}
	h.AuditLog.DeletionCanceled(ctx, r, su.ID)

	u.Status = models.UserStatusActive
	u.DeleteRequestedAt = nil
	h.respond(w, http.StatusOK, u)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.NotFound(w, "account not found")
		return
	}
	h.ErrLog.LogServerError(w, r, op, err, "could not update account")
}

// internal/app/features/admin/admin.go
package admin

import (
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// requireAdmin repeats the route middleware check so the handlers are safe
// wherever they are mounted.
func requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return nil, false
	}
	if !u.IsAdmin {
		apierrors.Forbidden(w, "admin only")
		return nil, false
	}
	return u, true
}

// HandleResyncPhotos handles POST /admin/resync-photos and answers
// {"updated": n, "skipped": m}.
func (h *Handler) HandleResyncPhotos(w http.ResponseWriter, r *http.Request) {
	u, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	if h.Resync == nil {
		apierrors.Write(w, http.StatusServiceUnavailable, "failed-precondition", "identity directory is not configured")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "resync photos")
	defer cancel()

	res, err := h.Resync.Run(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resync photos", err, "photo resync failed")
		return
	}
	h.AuditLog.PhotosResynced(ctx, r, u.ID, res.Updated, res.Skipped)
	h.Log.Info("photos resynced",
		zap.String("actor", u.ID),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	apierrors.JSON(w, http.StatusOK, res)
}

type provisionInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
}

// HandleProvisionUser handles POST /admin/users. The account is keyed by a
// placeholder id until its owner first signs in.
func (h *Handler) HandleProvisionUser(w http.ResponseWriter, r *http.Request) {
	u, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var in provisionInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}
	email := normalize.Email(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		apierrors.BadRequest(w, "a valid email is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "provision user")
	defer cancel()

	created, err := h.Users.Provision(ctx, email, in.DisplayName, in.IsAdmin, u.ID)
	if errors.Is(err, userstore.ErrDuplicate) {
		apierrors.Conflict(w, "a user with this email already exists")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "provision user", err, "could not create user")
		return
	}
	h.AuditLog.UserProvisioned(ctx, r, u.ID, created.ID, created.Email)
	apierrors.JSON(w, http.StatusCreated, created)
}

// HandleSweep handles POST /admin/sweep, running the account sweeper now.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	u, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "account sweep")
	defer cancel()

	res, err := h.Sweeper.Run(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account sweep", err, "account sweep failed")
		return
	}
	h.Log.Info("manual account sweep",
		zap.String("actor", u.ID),
		zap.Int("candidates", res.Candidates),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed))
	apierrors.JSON(w, http.StatusOK, res)
}

// internal/app/features/members/add.go
package members

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/notify"
	tripinvitestore "github.com/dalemusser/tripledger/internal/app/store/tripinvites"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/app/system/txn"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// HandleAdd handles POST /api/trips/{tripID}/members. A known email becomes a
// membership at once; an unknown one is stored as an invite and claimed at
// that person's first sign-in.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanManage() {
		apierrors.Forbidden(w, "only the trip owner can add members")
		return
	}
	var in addInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}
	email := normalize.Email(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		apierrors.BadRequest(w, "a valid email is required")
		return
	}
	role := normalize.Role(in.Role)
	if role == "" {
		role = models.RoleViewer
	}
	if role != models.RoleEditor && role != models.RoleViewer {
		apierrors.BadRequest(w, `role must be "editor" or "viewer"`)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "add member")
	defer cancel()

	target, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.invite(ctx, w, r, a.Trip.ID, email, role, in.DisplayName, u.ID)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "lookup user by email", err, "could not add member")
		return
	case target.DeletedAt != nil:
		apierrors.BadRequest(w, "that account has been deleted")
		return
	}

	var added models.TripMember
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		exists, err := h.Members.Exists(ctx, a.Trip.ID, target.ID)
		if err != nil {
			return err
		}
		if exists {
			return tripmemberstore.ErrDuplicate
		}
		added, err = h.Members.Add(ctx, models.TripMember{
			TripID:      a.Trip.ID,
			UserID:      target.ID,
			Role:        role,
			DisplayName: target.DisplayName,
			Email:       target.Email,
			PhotoURL:    target.PhotoURL,
			AddedBy:     u.ID,
		})
		if err != nil {
			return err
		}
		return h.recount(ctx, a.Trip.ID)
	})
	if errors.Is(err, tripmemberstore.ErrDuplicate) {
		apierrors.Conflict(w, "already a member of this trip")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "add member", err, "could not add member")
		return
	}

	h.Events.Publish(r.Context(), notify.Event{
		Kind:   notify.MemberAdded,
		Member: added,
		Actor:  notify.Actor{ID: u.ID, Name: u.Name, Email: u.Email},
	})
	h.Log.Info("member added",
		zap.String("trip_id", a.Trip.ID),
		zap.String("user_id", added.UserID),
		zap.String("role", role))
	apierrors.JSON(w, http.StatusCreated, addResponse{Member: &added})
}

func (h *Handler) invite(ctx context.Context, w http.ResponseWriter, r *http.Request, tripID, email, role, name, by string) {
	inv, err := h.Invites.Create(ctx, models.TripInvite{
		TripID:      tripID,
		Email:       email,
		Role:        role,
		DisplayName: normalize.Name(name),
		InvitedBy:   by,
	})
	if errors.Is(err, tripinvitestore.ErrDuplicate) {
		apierrors.Conflict(w, "that email has already been invited")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create invite", err, "could not add member")
		return
	}
	h.Log.Info("invite created", zap.String("trip_id", tripID), zap.String("invite_id", inv.ID))
	apierrors.JSON(w, http.StatusCreated, addResponse{Invite: &inv})
}

// HandleRevokeInvite handles DELETE /api/trips/{tripID}/members/invites?email=.
func (h *Handler) HandleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanManage() {
		apierrors.Forbidden(w, "only the trip owner can revoke invites")
		return
	}
	email := normalize.Email(query.Get(r, "email"))
	if email == "" {
		apierrors.BadRequest(w, "email is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "revoke invite")
	defer cancel()
	if err := h.Invites.Revoke(ctx, a.Trip.ID, email); err != nil {
		if errors.Is(err, tripinvitestore.ErrNotFound) {
			apierrors.NotFound(w, "invite not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "revoke invite", err, "could not revoke invite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

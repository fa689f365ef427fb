// internal/app/features/members/edit.go
package members

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/notify"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/app/system/txn"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errOwnerImmutable = errors.New("the trip owner cannot be changed or removed")

// HandleChangeRole handles PATCH /api/trips/{tripID}/members/{userID}.
func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanManage() {
		apierrors.Forbidden(w, "only the trip owner can change roles")
		return
	}
	var in roleInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}
	role := normalize.Role(in.Role)
	if role != models.RoleEditor && role != models.RoleViewer {
		apierrors.BadRequest(w, `role must be "editor" or "viewer"`)
		return
	}
	userID := chi.URLParam(r, "userID")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "change member role")
	defer cancel()

	current, err := h.Members.Get(ctx, a.Trip.ID, userID)
	if err != nil {
		h.writeMemberErr(w, r, "load member", err)
		return
	}
	if current.Role == models.RoleOwner {
		apierrors.BadRequest(w, errOwnerImmutable.Error())
		return
	}

	before, err := h.Members.UpdateRole(ctx, a.Trip.ID, userID, role, u.ID)
	if err != nil {
		h.writeMemberErr(w, r, "update role", err)
		return
	}
	after := before
	after.Role = role
	after.UpdatedBy = u.ID

	h.Events.Publish(r.Context(), notify.Event{
		Kind:     notify.MemberRoleChanged,
		Member:   after,
		PrevRole: before.Role,
		Actor:    notify.Actor{ID: u.ID, Name: u.Name, Email: u.Email},
	})
	apierrors.JSON(w, http.StatusOK, after)
}

// HandleRemove handles DELETE /api/trips/{tripID}/members/{userID}. Owners
// remove anyone but themselves; any other member may leave.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.access(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")
	leaving := userID == u.ID
	if !a.CanManage() && !leaving {
		apierrors.Forbidden(w, "only the trip owner can remove members")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "remove member")
	defer cancel()

	var removed models.TripMember
	err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		m, err := h.Members.Get(ctx, a.Trip.ID, userID)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner {
			return errOwnerImmutable
		}
		if removed, err = h.Members.Remove(ctx, a.Trip.ID, userID); err != nil {
			return err
		}
		return h.recount(ctx, a.Trip.ID)
	})
	if errors.Is(err, errOwnerImmutable) {
		apierrors.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.writeMemberErr(w, r, "remove member", err)
		return
	}

	h.Events.Publish(r.Context(), notify.Event{
		Kind:   notify.MemberRemoved,
		Member: removed,
		Actor:  notify.Actor{ID: u.ID, Name: u.Name, Email: u.Email},
	})
	h.Log.Info("member removed",
		zap.String("trip_id", a.Trip.ID),
		zap.String("user_id", userID),
		zap.String("by", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeMemberErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, tripmemberstore.ErrNotFound) {
		apierrors.NotFound(w, "member not found")
		return
	}
	h.ErrLog.LogServerError(w, r, op, err, "could not update member")
}

// internal/app/features/trips/list.go
package trips

import (
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
)

// ServeList handles GET /api/trips: the trips the caller is a member of.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list trips")
	defer cancel()

	mine, err := h.Members.ListByUser(ctx, u.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list memberships", err, "could not load trips")
		return
	}
	roles := make(map[string]string, len(mine))
	ids := make([]string, 0, len(mine))
	for _, m := range mine {
		roles[m.TripID] = m.Role
		ids = append(ids, m.TripID)
	}

	ts, err := h.Trips.GetMany(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load trips", err, "could not load trips")
		return
	}
	out := listResponse{Trips: make([]tripView, 0, len(ts))}
	for _, t := range ts {
		out.Trips = append(out.Trips, tripView{Trip: t, Role: roles[t.ID]})
	}
	apierrors.JSON(w, http.StatusOK, out)
}

// ServeTrip handles GET /api/trips/{tripID}.
func (h *Handler) ServeTrip(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	role := a.Role()
	if role == "" && a.IsOwner() {
		role = models.RoleOwner
	}
	apierrors.JSON(w, http.StatusOK, tripView{Trip: a.Trip, Role: role})
}

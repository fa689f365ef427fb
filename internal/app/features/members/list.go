// internal/app/features/members/list.go
package members

import (
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
)

// ServeList handles GET /api/trips/{tripID}/members. Pending invites are only
// shown to those who can manage the trip.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list members")
	defer cancel()

	ms, err := h.Members.ListByTrip(ctx, a.Trip.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list members", err, "could not load members")
		return
	}
	out := listResponse{Members: ms}
	if out.Members == nil {
		out.Members = []models.TripMember{}
	}
	if a.CanManage() {
		if out.Invites, err = h.Invites.ListByTrip(ctx, a.Trip.ID); err != nil {
			h.ErrLog.LogServerError(w, r, "list invites", err, "could not load members")
			return
		}
	}
	apierrors.JSON(w, http.StatusOK, out)
}

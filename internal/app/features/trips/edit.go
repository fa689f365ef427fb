// internal/app/features/trips/edit.go
package trips

import (
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/features/shared"
	"github.com/dalemusser/tripledger/internal/app/policy/trippolicy"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

func (h *Handler) access(w http.ResponseWriter, r *http.Request) (trippolicy.Access, *auth.SessionUser, bool) {
	return shared.TripAccess(w, r, h.Trips, h.Members, h.ErrLog)
}

// HandleUpdate handles PATCH /api/trips/{tripID}. Editors and owners may
// change the trip details.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanWrite() {
		apierrors.Forbidden(w, "viewers cannot edit the trip")
		return
	}
	var in tripInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}

	var up tripstore.Update
	if in.Name != nil {
		name := normalize.Name(*in.Name)
		if name == "" {
			apierrors.BadRequest(w, "name cannot be empty")
			return
		}
		up.Name = &name
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		up.Description = &d
	}
	start, end := a.Trip.StartDate, a.Trip.EndDate
	if in.StartDate != nil {
		s := in.StartDate.UTC()
		up.StartDate, start = &s, s
	}
	if in.EndDate != nil {
		e := in.EndDate.UTC()
		up.EndDate, end = &e, e
	}
	if end.Before(start) {
		apierrors.BadRequest(w, "end_date must not be before start_date")
		return
	}
	if in.Currency != nil {
		c := normalize.Currency(*in.Currency)
		if c == "" {
			apierrors.BadRequest(w, "currency cannot be empty")
			return
		}
		up.Currency = &c
	}
	up.CustomCurrencies = customCurrencies(in.CustomCurrencies)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update trip")
	defer cancel()
	if err := h.Trips.UpdateFields(ctx, a.Trip.ID, up); err != nil {
		h.writeStoreErr(w, r, "update trip", err)
		return
	}
	t, err := h.Trips.GetByID(ctx, a.Trip.ID)
	if err != nil {
		h.writeStoreErr(w, r, "reload trip", err)
		return
	}
	apierrors.JSON(w, http.StatusOK, tripView{Trip: t, Role: a.Role()})
}

// HandleStatus handles POST /api/trips/{tripID}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanManage() {
		apierrors.Forbidden(w, "only the trip owner can change its status")
		return
	}
	var in statusInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}
	status := normalize.Status(in.Status)
	if status != models.TripStatusActive && status != models.TripStatusInactive {
		apierrors.BadRequest(w, `status must be "active" or "inactive"`)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set trip status")
	defer cancel()
	if err := h.Trips.SetStatus(ctx, a.Trip.ID, status); err != nil {
		h.writeStoreErr(w, r, "set trip status", err)
		return
	}
	a.Trip.Status = status
	apierrors.JSON(w, http.StatusOK, tripView{Trip: a.Trip, Role: a.Role()})
}

// HandleDelete handles DELETE /api/trips/{tripID}. Members, invites and
// expenses go with the trip.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.access(w, r)
	if !ok {
		return
	}
	if !a.CanManage() {
		apierrors.Forbidden(w, "only the trip owner can delete it")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete trip")
	defer cancel()
	if err := h.Trips.Delete(ctx, a.Trip.ID); err != nil {
		h.writeStoreErr(w, r, "delete trip", err)
		return
	}
	h.Log.Info("trip deleted", zap.String("trip_id", a.Trip.ID), zap.String("user_id", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeStoreErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, tripstore.ErrNotFound) {
		apierrors.NotFound(w, "trip not found")
		return
	}
	h.ErrLog.LogServerError(w, r, op, err, "could not save trip")
}

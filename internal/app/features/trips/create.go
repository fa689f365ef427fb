// internal/app/features/trips/create.go
package trips

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/app/system/txn"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

const defaultCurrency = "TWD"

// HandleCreate handles POST /api/trips. The creator becomes the owner member.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	var in tripInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}

	t, msg := newTrip(in)
	if msg != "" {
		apierrors.BadRequest(w, msg)
		return
	}
	one := 1
	t.CreatedBy = u.ID
	t.OwnerID = u.ID
	t.MemberCount = &one

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create trip")
	defer cancel()

	var owner models.TripMember
	err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if t, err = h.Trips.Create(ctx, t); err != nil {
			return err
		}
		owner, err = h.Members.Add(ctx, models.TripMember{
			TripID:      t.ID,
			UserID:      u.ID,
			Role:        models.RoleOwner,
			DisplayName: u.Name,
			Email:       u.Email,
			PhotoURL:    u.PhotoURL,
			AddedBy:     u.ID,
		})
		return err
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create trip", err, "could not create trip")
		return
	}

	h.Events.Publish(r.Context(), notify.Event{
		Kind:   notify.MemberAdded,
		Member: owner,
		Actor:  notify.Actor{ID: u.ID, Name: u.Name, Email: u.Email},
	})
	h.Log.Info("trip created", zap.String("trip_id", t.ID), zap.String("user_id", u.ID))
	apierrors.JSON(w, http.StatusCreated, tripView{Trip: t, Role: models.RoleOwner})
}

// newTrip validates a create request. A non-empty message means invalid.
func newTrip(in tripInput) (models.Trip, string) {
	var t models.Trip
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return t, "name is required"
	}
	if in.StartDate == nil || in.EndDate == nil {
		return t, "start_date and end_date are required"
	}
	if in.EndDate.Before(*in.StartDate) {
		return t, "end_date must not be before start_date"
	}
	t.Name = normalize.Name(*in.Name)
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	t.StartDate = in.StartDate.UTC()
	t.EndDate = in.EndDate.UTC()
	t.Currency = defaultCurrency
	if in.Currency != nil && normalize.Currency(*in.Currency) != "" {
		t.Currency = normalize.Currency(*in.Currency)
	}
	t.CustomCurrencies = customCurrencies(in.CustomCurrencies)
	return t, ""
}

func customCurrencies(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = normalize.Currency(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

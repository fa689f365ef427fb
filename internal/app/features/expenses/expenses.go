// internal/app/features/expenses/expenses.go
package expenses

import (
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/notify"
	expensestore "github.com/dalemusser/tripledger/internal/app/store/expenses"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func actorOf(u *auth.SessionUser) notify.Actor {
	return notify.Actor{ID: u.ID, Name: u.Name, Email: u.Email}
}

// ServeList handles GET /api/trips/{tripID}/expenses.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list expenses")
	defer cancel()

	es, err := h.Expenses.ListByTrip(ctx, a.Trip.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list expenses", err, "could not load expenses")
		return
	}
	out := listResponse{Expenses: es}
	if out.Expenses == nil {
		out.Expenses = []models.Expense{}
	}
	for _, e := range es {
		out.Total += e.AmountInBase
	}
	apierrors.JSON(w, http.StatusOK, out)
}

// ServeExpense handles GET /api/trips/{tripID}/expenses/{expenseID}.
func (h *Handler) ServeExpense(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.access(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get expense")
	defer cancel()

	e, err := h.Expenses.Get(ctx, a.Trip.ID, chi.URLParam(r, "expenseID"))
	if err != nil {
		h.writeStoreErr(w, r, "get expense", err)
		return
	}
	apierrors.JSON(w, http.StatusOK, e)
}

// HandleCreate handles POST /api/trips/{tripID}/expenses.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.writable(w, r)
	if !ok {
		return
	}
	var in expenseInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}
	e := models.Expense{
		TripID:           a.Trip.ID,
		SubmittedBy:      u.ID,
		SubmittedByName:  u.Name,
		SubmittedByEmail: u.Email,
	}
	if msg := in.apply(&e, a.Trip); msg != "" {
		apierrors.BadRequest(w, msg)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create expense")
	defer cancel()
	e, err := h.Expenses.Create(ctx, e)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create expense", err, "could not save expense")
		return
	}

	h.Events.Publish(r.Context(), notify.Event{Kind: notify.ExpenseCreated, Expense: e, Actor: actorOf(u)})
	h.Log.Debug("expense created", zap.String("trip_id", e.TripID), zap.String("expense_id", e.ID))
	apierrors.JSON(w, http.StatusCreated, e)
}

// HandleUpdate handles PUT /api/trips/{tripID}/expenses/{expenseID}. The
// submitter fields stay as they were; the editor is recorded separately.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.writable(w, r)
	if !ok {
		return
	}
	var in expenseInput
	if err := apierrors.DecodeJSON(w, r, &in); err != nil {
		apierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update expense")
	defer cancel()

	e, err := h.Expenses.Get(ctx, a.Trip.ID, chi.URLParam(r, "expenseID"))
	if err != nil {
		h.writeStoreErr(w, r, "load expense", err)
		return
	}
	if msg := in.apply(&e, a.Trip); msg != "" {
		apierrors.BadRequest(w, msg)
		return
	}
	e.UpdatedBy, e.UpdatedByName, e.UpdatedByEmail = u.ID, u.Name, u.Email

	if e, err = h.Expenses.Replace(ctx, e); err != nil {
		h.writeStoreErr(w, r, "update expense", err)
		return
	}
	h.Events.Publish(r.Context(), notify.Event{Kind: notify.ExpenseUpdated, Expense: e, Actor: actorOf(u)})
	apierrors.JSON(w, http.StatusOK, e)
}

// HandleDelete handles DELETE /api/trips/{tripID}/expenses/{expenseID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, u, ok := h.writable(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete expense")
	defer cancel()

	removed, err := h.Expenses.Delete(ctx, a.Trip.ID, chi.URLParam(r, "expenseID"))
	if err != nil {
		h.writeStoreErr(w, r, "delete expense", err)
		return
	}
	h.Events.Publish(r.Context(), notify.Event{Kind: notify.ExpenseDeleted, Expense: removed, Actor: actorOf(u)})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeStoreErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, expensestore.ErrNotFound) {
		apierrors.NotFound(w, "expense not found")
		return
	}
	h.ErrLog.LogServerError(w, r, op, err, "could not save expense")
}

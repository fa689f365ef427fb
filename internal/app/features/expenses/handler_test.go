package expenses_test

import (
	"net/http"
	"testing"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/features/expenses"
	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type world struct {
	h      *expenses.Handler
	fx     *testutil.Fixtures
	events *testutil.EventRecorder
	trip   models.Trip
	alice  models.User // owner
	bob    models.User // editor
	carol  models.User // viewer
}

func setup(t *testing.T) *world {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	events := &testutil.EventRecorder{}
	w := &world{
		h:      expenses.NewHandler(db, events, apierrors.NewErrorLogger(logger), logger),
		fx:     testutil.NewFixtures(t, db),
		events: events,
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w.alice = w.fx.CreateUser(ctx, "uid-alice", "alice@example.com", "Alice")
	w.bob = w.fx.CreateUser(ctx, "uid-bob", "bob@example.com", "Bob")
	w.carol = w.fx.CreateUser(ctx, "uid-carol", "carol@example.com", "Carol")
	w.trip = w.fx.CreateTrip(ctx, "Tokyo", w.alice.ID)
	w.fx.AddMember(ctx, w.trip.ID, w.alice, models.RoleOwner)
	w.fx.AddMember(ctx, w.trip.ID, w.bob, models.RoleEditor)
	w.fx.AddMember(ctx, w.trip.ID, w.carol, models.RoleViewer)
	return w
}

func (w *world) request(method, expenseID string, body interface{}, as models.User) *http.Request {
	req := testutil.NewJSONRequest(method, "/api/trips/"+w.trip.ID+"/expenses/"+expenseID, body)
	req = testutil.WithUser(req, testutil.AsTestUser(as))
	req = testutil.WithChiURLParam(req, "tripID", w.trip.ID)
	if expenseID != "" {
		req = testutil.WithChiURLParam(req, "expenseID", expenseID)
	}
	return req
}

func TestHandleCreate(t *testing.T) {
	w := setup(t)

	body := map[string]interface{}{"item": " Dinner ", "amount": 500}
	rec := testutil.NewRecorder()
	w.h.HandleCreate(rec, w.request("POST", "", body, w.bob))
	rec.AssertStatus(t, http.StatusCreated)

	var e models.Expense
	rec.DecodeJSON(t, &e)
	if e.Item != "Dinner" || e.Currency != "TWD" || e.AmountInBase != 500 {
		t.Errorf("expense = %+v", e)
	}
	if e.SubmittedBy != w.bob.ID || e.SubmittedByName != "Bob" {
		t.Errorf("submitter = %q %q", e.SubmittedBy, e.SubmittedByName)
	}
	if e.Category != "other" || e.PaymentMethod != "cash" {
		t.Errorf("defaults = %q %q", e.Category, e.PaymentMethod)
	}

	evs := w.events.Events()
	if len(evs) != 1 || evs[0].Kind != notify.ExpenseCreated || evs[0].Expense.ID != e.ID {
		t.Errorf("events = %+v", evs)
	}
}

func TestHandleCreate_ForeignCurrency(t *testing.T) {
	w := setup(t)

	body := map[string]interface{}{"item": "Sushi", "amount": 1000, "currency": "jpy", "exchange_rate": 0.2}
	rec := testutil.NewRecorder()
	w.h.HandleCreate(rec, w.request("POST", "", body, w.alice))
	rec.AssertStatus(t, http.StatusCreated)

	var e models.Expense
	rec.DecodeJSON(t, &e)
	if e.Currency != "JPY" || e.AmountInBase != 200 {
		t.Errorf("currency=%q amount_in_base=%v, want JPY 200", e.Currency, e.AmountInBase)
	}
}

func TestHandleCreate_Rejections(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		as   models.User
		body map[string]interface{}
		want int
	}{
		{"viewer", w.carol, map[string]interface{}{"item": "Taxi", "amount": 10}, http.StatusForbidden},
		{"no item", w.bob, map[string]interface{}{"amount": 10}, http.StatusBadRequest},
		{"zero amount", w.bob, map[string]interface{}{"item": "Taxi", "amount": 0}, http.StatusBadRequest},
		{"negative rate", w.bob, map[string]interface{}{"item": "Taxi", "amount": 10, "currency": "USD", "exchange_rate": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			w.h.HandleCreate(rec, w.request("POST", "", tt.body, tt.as))
			rec.AssertStatus(t, tt.want)
		})
	}

	n, _ := w.fx.DB().Collection("expenses").CountDocuments(ctx, bson.M{})
	if n != 0 || len(w.events.Events()) != 0 {
		t.Errorf("stored %d expenses and %d events, want none", n, len(w.events.Events()))
	}
}

func TestHandleCreate_InactiveTrip(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := w.fx.DB().Collection("trips").UpdateOne(ctx, bson.M{"_id": w.trip.ID},
		bson.M{"$set": bson.M{"status": models.TripStatusInactive}}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec := testutil.NewRecorder()
	w.h.HandleCreate(rec, w.request("POST", "", map[string]interface{}{"item": "Taxi", "amount": 10}, w.bob))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleUpdate_RecordsEditor(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	orig := w.fx.CreateExpense(ctx, w.trip.ID, w.bob, "Dinner", 500)

	body := map[string]interface{}{"item": "Dinner", "amount": 650}
	rec := testutil.NewRecorder()
	w.h.HandleUpdate(rec, w.request("PUT", orig.ID, body, w.alice))
	rec.AssertStatus(t, http.StatusOK)

	var e models.Expense
	rec.DecodeJSON(t, &e)
	if e.Amount != 650 || e.UpdatedBy != w.alice.ID || e.SubmittedBy != w.bob.ID {
		t.Errorf("expense = %+v", e)
	}

	evs := w.events.Events()
	if len(evs) != 1 || evs[0].Kind != notify.ExpenseUpdated || evs[0].Expense.UpdatedBy != w.alice.ID {
		t.Errorf("events = %+v", evs)
	}

	rec = testutil.NewRecorder()
	w.h.HandleUpdate(rec, w.request("PUT", "missing", body, w.alice))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleDelete(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e := w.fx.CreateExpense(ctx, w.trip.ID, w.bob, "Dinner", 500)

	rec := testutil.NewRecorder()
	w.h.HandleDelete(rec, w.request("DELETE", e.ID, nil, w.carol))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	w.h.HandleDelete(rec, w.request("DELETE", e.ID, nil, w.alice))
	rec.AssertStatus(t, http.StatusNoContent)

	evs := w.events.Events()
	if len(evs) != 1 || evs[0].Kind != notify.ExpenseDeleted || evs[0].Expense.Item != "Dinner" || evs[0].Actor.ID != w.alice.ID {
		t.Errorf("events = %+v", evs)
	}

	rec = testutil.NewRecorder()
	w.h.HandleDelete(rec, w.request("DELETE", e.ID, nil, w.alice))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeList_ViewerCanRead(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w.fx.CreateExpense(ctx, w.trip.ID, w.bob, "Dinner", 500)
	w.fx.CreateExpense(ctx, w.trip.ID, w.alice, "Taxi", 120)

	rec := testutil.NewRecorder()
	w.h.ServeList(rec, w.request("GET", "", nil, w.carol))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Expenses []models.Expense `json:"expenses"`
		Total    float64          `json:"total_in_base"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Expenses) != 2 || resp.Total != 620 {
		t.Errorf("got %d expenses totalling %v, want 2 and 620", len(resp.Expenses), resp.Total)
	}
}

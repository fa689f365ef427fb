package notify_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

type world struct {
	trips   fakeTrips
	members fakeMembers
	users   fakeUsers
	sink    *fakeSink
	d       *notify.Dispatcher
}

// newWorld sets up trip t1 "Tokyo" with alice (owner), bob (editor) and
// carol (viewer).
func newWorld() *world {
	w := &world{
		trips: fakeTrips{"t1": {ID: "t1", Name: "Tokyo", Status: models.TripStatusActive}},
		members: fakeMembers{"t1": {
			member("t1", "alice", "Alice", models.RoleOwner),
			member("t1", "bob", "Bob", models.RoleEditor),
			member("t1", "carol", "Carol", models.RoleViewer),
		}},
		users: fakeUsers{
			"alice": {ID: "alice", DisplayName: "Alice", Email: "alice@example.com"},
			"bob":   {ID: "bob", DisplayName: "Bob", Email: "bob@example.com"},
		},
		sink: newSink(),
	}
	w.d = notify.NewDispatcher(w.trips, w.members, w.users, w.sink, zap.NewNop())
	return w
}

func dinner() models.Expense {
	return models.Expense{
		ID:               "e1",
		TripID:           "t1",
		Item:             "Dinner",
		Amount:           500,
		Currency:         "TWD",
		SubmittedBy:      "alice",
		SubmittedByName:  "Alice",
		SubmittedByEmail: "alice@example.com",
		SubmittedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExpenseCreated_NotifiesEveryoneButSubmitter(t *testing.T) {
	w := newWorld()

	res, err := w.d.ExpenseCreated(context.Background(), dinner())
	if err != nil {
		t.Fatalf("ExpenseCreated: %v", err)
	}
	if res.Recipients != 2 || res.Delivered != 2 {
		t.Fatalf("result = %+v, want 2 recipients delivered", res)
	}

	got := w.sink.recipients()
	if _, ok := got["alice"]; ok {
		t.Error("submitter should not be notified")
	}
	for _, uid := range []string{"bob", "carol"} {
		n, ok := got[uid]
		if !ok {
			t.Fatalf("%s not notified", uid)
		}
		if n.Message != `Alice added expense item "Dinner" (500 TWD)` {
			t.Errorf("message = %q", n.Message)
		}
		if n.Type != models.NotifyExpenseAdded || n.TripID != "t1" || n.TripName != "Tokyo" {
			t.Errorf("unexpected notification %+v", n)
		}
		if n.RelatedID != "e1" || n.RelatedName != "Dinner" {
			t.Errorf("related = %q/%q", n.RelatedID, n.RelatedName)
		}
		if n.ActorID != "alice" || n.ActorName != "Alice" {
			t.Errorf("actor = %q/%q", n.ActorID, n.ActorName)
		}
		if n.IsRead {
			t.Error("new notification should be unread")
		}
		if n.ID == "" || n.DedupKey == "" {
			t.Error("id and dedup key must be set")
		}
	}
}

func TestExpenseCreated_UnknownTripAborts(t *testing.T) {
	w := newWorld()
	e := dinner()
	e.TripID = "missing"

	res, err := w.d.ExpenseCreated(context.Background(), e)
	if err != nil {
		t.Fatalf("abort should not return an error, got %v", err)
	}
	if !res.Aborted {
		t.Error("expected Aborted")
	}
	if n := len(w.sink.all()); n != 0 {
		t.Errorf("wrote %d notifications, want 0", n)
	}
}

func TestExpenseCreated_SoloTripWritesNothing(t *testing.T) {
	w := newWorld()
	w.members["t1"] = w.members["t1"][:1]

	res, err := w.d.ExpenseCreated(context.Background(), dinner())
	if err != nil {
		t.Fatalf("ExpenseCreated: %v", err)
	}
	if res.Recipients != 0 || len(w.sink.all()) != 0 {
		t.Errorf("result = %+v, want no recipients", res)
	}
}

func TestExpenseCreated_RedeliveryIsDeduplicated(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	if _, err := w.d.ExpenseCreated(ctx, dinner()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	res, err := w.d.ExpenseCreated(ctx, dinner())
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if res.Duplicates != 2 || res.Delivered != 0 {
		t.Errorf("result = %+v, want 2 duplicates", res)
	}
	if n := len(w.sink.all()); n != 2 {
		t.Errorf("stored %d notifications, want 2", n)
	}
}

func TestExpenseCreated_PartialFailureKeepsOthers(t *testing.T) {
	w := newWorld()
	w.sink.failOn["bob"] = true

	res, err := w.d.ExpenseCreated(context.Background(), dinner())
	if err == nil {
		t.Fatal("expected an error for the failed write")
	}
	if !strings.Contains(err.Error(), "1 of 2 notifications failed") {
		t.Errorf("error = %v", err)
	}
	if res.Failed != 1 || res.Delivered != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := w.sink.recipients()["carol"]; !ok {
		t.Error("carol's notification should persist")
	}
}

func TestExpenseUpdated_ExcludesEditor(t *testing.T) {
	w := newWorld()
	e := dinner()
	e.UpdatedBy = "bob"
	e.UpdatedByName = "Bob"
	e.UpdatedAt = e.UpdatedAt.Add(time.Hour)

	res, err := w.d.ExpenseUpdated(context.Background(), e, notify.Actor{})
	if err != nil {
		t.Fatalf("ExpenseUpdated: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("result = %+v", res)
	}
	got := w.sink.recipients()
	if _, ok := got["bob"]; ok {
		t.Error("editor should not be notified")
	}
	if got["alice"].Message != `Bob updated expense item "Dinner"` {
		t.Errorf("message = %q", got["alice"].Message)
	}
}

func TestExpenseUpdated_DistinctEditsAreDistinct(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	e := dinner()

	e.UpdatedAt = e.UpdatedAt.Add(time.Minute)
	if _, err := w.d.ExpenseUpdated(ctx, e, notify.Actor{}); err != nil {
		t.Fatal(err)
	}
	e.UpdatedAt = e.UpdatedAt.Add(time.Minute)
	res, err := w.d.ExpenseUpdated(ctx, e, notify.Actor{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 2 {
		t.Errorf("second edit should deliver again, got %+v", res)
	}
	if n := len(w.sink.all()); n != 4 {
		t.Errorf("stored %d, want 4", n)
	}
}

func TestExpenseDeleted_ExplicitActor(t *testing.T) {
	w := newWorld()

	_, err := w.d.ExpenseDeleted(context.Background(), dinner(), notify.Actor{ID: "carol", Name: "Carol"})
	if err != nil {
		t.Fatalf("ExpenseDeleted: %v", err)
	}
	got := w.sink.recipients()
	if len(got) != 2 {
		t.Fatalf("got %d recipients, want 2", len(got))
	}
	if _, ok := got["carol"]; ok {
		t.Error("deleter should not be notified")
	}
	if got["bob"].Message != `Carol deleted expense item "Dinner"` {
		t.Errorf("message = %q", got["bob"].Message)
	}
}

func TestExpenseCreated_SanitizesMarkup(t *testing.T) {
	w := newWorld()
	e := dinner()
	e.Item = "<b>Dinner</b><script>alert(1)</script>"

	if _, err := w.d.ExpenseCreated(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	n := w.sink.recipients()["bob"]
	if strings.Contains(n.Message, "<") || strings.Contains(n.RelatedName, "<") {
		t.Errorf("markup leaked: %q / %q", n.Message, n.RelatedName)
	}
}

func TestMemberAdded_NotifiesOnlyNewMember(t *testing.T) {
	w := newWorld()
	dave := member("t1", "dave", "Dave", models.RoleViewer)
	dave.AddedBy = "alice"
	dave.JoinedAt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	w.members["t1"] = append(w.members["t1"], dave)

	res, err := w.d.MemberAdded(context.Background(), dave)
	if err != nil {
		t.Fatalf("MemberAdded: %v", err)
	}
	if res.Delivered != 1 {
		t.Fatalf("result = %+v, want exactly 1", res)
	}
	n, ok := w.sink.recipients()["dave"]
	if !ok {
		t.Fatal("new member not notified")
	}
	if n.Message != `Dave was added to trip "Tokyo"` {
		t.Errorf("message = %q", n.Message)
	}
	if n.ActorID != "alice" || n.ActorName != "Alice" {
		t.Errorf("actor = %q/%q", n.ActorID, n.ActorName)
	}
}

func TestMemberAdded_SelfAddIsSilent(t *testing.T) {
	w := newWorld()
	m := member("t1", "alice", "Alice", models.RoleOwner)
	m.AddedBy = "alice"

	res, err := w.d.MemberAdded(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if res.Recipients != 0 || len(w.sink.all()) != 0 {
		t.Errorf("self add wrote notifications: %+v", res)
	}
}

func TestMemberAdded_UnknownActorIsSomeone(t *testing.T) {
	w := newWorld()
	m := member("t1", "dave", "Dave", models.RoleViewer)
	m.AddedBy = "ghost"

	if _, err := w.d.MemberAdded(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if got := w.sink.recipients()["dave"].ActorName; got != "Someone" {
		t.Errorf("actor name = %q, want Someone", got)
	}
}

func TestMemberRemoved_ExcludesRemovedAndActor(t *testing.T) {
	w := newWorld()
	removed := member("t1", "carol", "Carol", models.RoleViewer)
	w.members["t1"] = w.members["t1"][:2]

	_, err := w.d.MemberRemoved(context.Background(), removed, notify.Actor{ID: "alice", Name: "Alice"})
	if err != nil {
		t.Fatalf("MemberRemoved: %v", err)
	}
	got := w.sink.recipients()
	if len(got) != 1 {
		t.Fatalf("got %d recipients, want 1", len(got))
	}
	if got["bob"].Message != "Carol was removed from the trip" {
		t.Errorf("message = %q", got["bob"].Message)
	}
}

func TestMemberRemoved_StillListedIsExcluded(t *testing.T) {
	w := newWorld()
	removed := member("t1", "carol", "Carol", models.RoleViewer)

	if _, err := w.d.MemberRemoved(context.Background(), removed, notify.Actor{}); err != nil {
		t.Fatal(err)
	}
	got := w.sink.recipients()
	if _, ok := got["carol"]; ok {
		t.Error("removed member should not be notified")
	}
	if got["alice"].ActorID != notify.SystemActor.ID {
		t.Errorf("actor = %q, want system", got["alice"].ActorID)
	}
}

func TestMemberRoleChanged(t *testing.T) {
	w := newWorld()
	m := member("t1", "carol", "Carol", models.RoleEditor)
	m.UpdatedBy = "alice"
	m.UpdatedAt = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	res, err := w.d.MemberRoleChanged(context.Background(), m, models.RoleViewer, notify.Actor{})
	if err != nil {
		t.Fatalf("MemberRoleChanged: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("result = %+v", res)
	}
	got := w.sink.recipients()
	if _, ok := got["alice"]; ok {
		t.Error("actor should not be notified")
	}
	if got["carol"].Message != "Carol's role was changed to editor" {
		t.Errorf("message = %q", got["carol"].Message)
	}
	if got["bob"].ActorName != "Alice" {
		t.Errorf("actor name = %q", got["bob"].ActorName)
	}
}

func TestMemberRoleChanged_SameRoleIsSilent(t *testing.T) {
	w := newWorld()
	m := member("t1", "carol", "Carol", models.RoleViewer)

	res, err := w.d.MemberRoleChanged(context.Background(), m, models.RoleViewer, notify.Actor{ID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Recipients != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatch_RoutesByKind(t *testing.T) {
	w := newWorld()

	res, err := w.d.Dispatch(context.Background(), notify.Event{Kind: notify.ExpenseCreated, Expense: dinner()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, err := w.d.Dispatch(context.Background(), notify.Event{Kind: "bogus"}); err == nil {
		t.Error("unknown kind should error")
	}
}

func TestResolver_Excludes(t *testing.T) {
	w := newWorld()
	r := notify.NewResolver(w.members)

	got, err := r.Resolve(context.Background(), "t1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	for _, rc := range got {
		if rc.UserID == "bob" {
			t.Error("excluded user returned")
		}
	}

	got, err = r.Resolve(context.Background(), "t1", "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d, want 3", len(got))
	}
}

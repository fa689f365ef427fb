package sweeper_test

import (
	"testing"
	"time"

	expensestore "github.com/dalemusser/tripledger/internal/app/store/expenses"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/sweeper"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.uber.org/zap"
)

func TestMongoStore_Sweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	due := fx.CreateDeletionRequest(ctx, "uid-due", "due@example.com", now.Add(-8*24*time.Hour))
	recent := fx.CreateDeletionRequest(ctx, "uid-recent", "recent@example.com", now.Add(-6*24*time.Hour))
	bob := fx.CreateUser(ctx, "uid-bob", "bob@example.com", "Bob")

	fx.CreateExpense(ctx, "trip-1", due, "Dinner", 800)
	fx.CreateExpense(ctx, "trip-2", due, "Hotel", 3000)
	fx.CreateExpense(ctx, "trip-1", recent, "Taxi", 200)
	fx.CreateExpense(ctx, "trip-1", bob, "Snacks", 90)

	sw := sweeper.New(sweeper.NewMongoStore(db, zap.NewNop()), nil, zap.NewNop()).
		WithClock(func() time.Time { return now })
	res, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Candidates != 1 || res.Deleted != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v, want one deletion", res)
	}

	users := userstore.New(db)
	u, _ := users.GetByID(ctx, due.ID)
	if u.DeletedAt == nil || u.DisplayName != models.DeletedUserName {
		t.Errorf("due user = %+v, want marked deleted", u)
	}
	r, _ := users.GetByID(ctx, recent.ID)
	if r.DeletedAt != nil {
		t.Error("user inside the grace period was deleted")
	}

	expenses := expensestore.New(db)
	for _, trip := range []string{"trip-1", "trip-2"} {
		list, err := expenses.ListByTrip(ctx, trip)
		if err != nil {
			t.Fatalf("ListByTrip %s: %v", trip, err)
		}
		for _, e := range list {
			anonymized := e.IsDeletedUser && e.SubmittedByName == models.DeletedUserName
			if (e.SubmittedBy == due.ID) != anonymized {
				t.Errorf("%s expense %q by %s: anonymized = %v", trip, e.Item, e.SubmittedBy, anonymized)
			}
		}
	}

	again, err := sw.Run(ctx)
	if err != nil || again.Candidates != 0 {
		t.Errorf("second run = %+v, %v; want no candidates", again, err)
	}
}

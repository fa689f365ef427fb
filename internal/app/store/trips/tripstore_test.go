package tripstore_test

import (
	"errors"
	"testing"

	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSetOwnerIfUnset_FillsMissingFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	trip := fx.CreateTrip(ctx, "Kyoto", "uid-alice")
	if err := s.SetOwnerIfUnset(ctx, trip.ID, "uid-alice", 3); err != nil {
		t.Fatalf("SetOwnerIfUnset: %v", err)
	}
	got, err := s.GetByID(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OwnerID != "uid-alice" {
		t.Errorf("owner_id = %q, want uid-alice", got.OwnerID)
	}
	if got.MemberCount == nil || *got.MemberCount != 3 {
		t.Errorf("member_count = %v, want 3", got.MemberCount)
	}
}

func TestSetOwnerIfUnset_KeepsPresetOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	two := 2
	trip, err := s.Create(ctx, models.Trip{
		Name:        "Taipei",
		Currency:    "TWD",
		CreatedBy:   "uid-alice",
		OwnerID:     "uid-bob",
		MemberCount: &two,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetOwnerIfUnset(ctx, trip.ID, "uid-alice", 5); err != nil {
		t.Fatalf("SetOwnerIfUnset: %v", err)
	}
	got, _ := s.GetByID(ctx, trip.ID)
	if got.OwnerID != "uid-bob" {
		t.Errorf("owner_id = %q, want uid-bob unchanged", got.OwnerID)
	}
	if got.MemberCount == nil || *got.MemberCount != 2 {
		t.Errorf("member_count = %v, want 2 unchanged", got.MemberCount)
	}
}

func TestSetMemberCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	trip := fx.CreateTrip(ctx, "Osaka", "uid-alice")
	if err := s.SetMemberCount(ctx, trip.ID, 4); err != nil {
		t.Fatalf("SetMemberCount: %v", err)
	}
	got, _ := s.GetByID(ctx, trip.ID)
	if got.MemberCount == nil || *got.MemberCount != 4 {
		t.Errorf("member_count = %v, want 4", got.MemberCount)
	}
}

func TestUpdateFieldsAndStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	trip := fx.CreateTrip(ctx, "Osaka", "uid-alice")
	name := "Osaka & Nara"
	if err := s.UpdateFields(ctx, trip.ID, tripstore.Update{Name: &name, CustomCurrencies: []string{"JPY"}}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := s.SetStatus(ctx, trip.ID, models.TripStatusInactive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, _ := s.GetByID(ctx, trip.ID)
	if got.Name != name || got.Status != models.TripStatusInactive || got.Currency != "TWD" {
		t.Errorf("trip = %+v", got)
	}
	if len(got.CustomCurrencies) != 1 || got.CustomCurrencies[0] != "JPY" {
		t.Errorf("custom currencies = %v", got.CustomCurrencies)
	}

	if err := s.UpdateFields(ctx, "missing", tripstore.Update{Name: &name}); !errors.Is(err, tripstore.ErrNotFound) {
		t.Errorf("UpdateFields missing: err = %v, want ErrNotFound", err)
	}
	if err := s.SetStatus(ctx, "missing", models.TripStatusActive); !errors.Is(err, tripstore.ErrNotFound) {
		t.Errorf("SetStatus missing: err = %v, want ErrNotFound", err)
	}
}

func TestDelete_Cascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	alice := fx.CreateUser(ctx, "uid-alice", "alice@example.com", "Alice")
	trip := fx.CreateTrip(ctx, "Kyoto", alice.ID)
	other := fx.CreateTrip(ctx, "Tainan", alice.ID)
	fx.AddMember(ctx, trip.ID, alice, models.RoleOwner)
	fx.AddMember(ctx, other.ID, alice, models.RoleOwner)
	fx.CreateExpense(ctx, trip.ID, alice, "Ramen", 1200)
	fx.CreateInvite(ctx, trip.ID, "bob@example.com", models.RoleViewer, alice.ID)

	if err := s.Delete(ctx, trip.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, trip.ID); !errors.Is(err, tripstore.ErrNotFound) {
		t.Errorf("GetByID after delete: err = %v, want ErrNotFound", err)
	}
	for _, coll := range []string{"trip_members", "trip_invites", "expenses"} {
		n, err := db.Collection(coll).CountDocuments(ctx, bson.M{"trip_id": trip.ID})
		if err != nil {
			t.Fatalf("count %s: %v", coll, err)
		}
		if n != 0 {
			t.Errorf("%s left for deleted trip: %d", coll, n)
		}
	}
	if n, _ := db.Collection("trip_members").CountDocuments(ctx, bson.M{"trip_id": other.ID}); n != 1 {
		t.Errorf("other trip members = %d, want 1", n)
	}

	if err := s.Delete(ctx, trip.ID); !errors.Is(err, tripstore.ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func TestGetManyAndListCreatedBy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := tripstore.New(db)

	a := fx.CreateTrip(ctx, "A", "uid-alice")
	b := fx.CreateTrip(ctx, "B", "uid-bob")

	many, err := s.GetMany(ctx, []string{a.ID, b.ID, "missing"})
	if err != nil || len(many) != 2 {
		t.Fatalf("GetMany = %d, %v; want 2", len(many), err)
	}
	if none, err := s.GetMany(ctx, nil); err != nil || none != nil {
		t.Errorf("GetMany(nil) = %v, %v", none, err)
	}
	mine, err := s.ListCreatedBy(ctx, "uid-alice")
	if err != nil || len(mine) != 1 || mine[0].ID != a.ID {
		t.Errorf("ListCreatedBy = %+v, %v", mine, err)
	}
}

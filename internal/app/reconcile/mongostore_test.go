package reconcile_test

import (
	"testing"

	"github.com/dalemusser/tripledger/internal/app/reconcile"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.uber.org/zap"
)

func TestMongoStore_MigrateRefusesWhenRealRecordExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := reconcile.NewMongoStore(db, zap.NewNop())

	id := reconcile.Identity{UserID: "uid-alice", Email: "alice@example.com", DisplayName: "Alice"}
	trip := fx.CreateTrip(ctx, "Kyoto", "alice_example_com")
	legacy := fx.AddMemberByID(ctx, trip.ID, "alice_example_com", "Alice", id.Email, models.RoleEditor)
	fx.AddMemberByID(ctx, trip.ID, id.UserID, "Alice", id.Email, models.RoleViewer)

	moved, err := s.MigrateMembership(ctx, legacy, id)
	if err != nil {
		t.Fatalf("MigrateMembership: %v", err)
	}
	if moved {
		t.Error("migrated over an existing real membership")
	}

	members := tripmemberstore.New(db)
	if ok, _ := members.Exists(ctx, trip.ID, legacy.UserID); !ok {
		t.Error("legacy record was deleted")
	}
	kept, _ := members.Get(ctx, trip.ID, id.UserID)
	if kept.Role != models.RoleViewer {
		t.Errorf("real record role = %q, want viewer unchanged", kept.Role)
	}
}

func TestMongoStore_MigrateMovesLegacyRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := reconcile.NewMongoStore(db, zap.NewNop())

	id := reconcile.Identity{UserID: "uid-alice", Email: "alice@example.com", PhotoURL: "https://example.com/a.png"}
	trip := fx.CreateTrip(ctx, "Kyoto", "uid-bob")
	legacy := fx.AddMemberByID(ctx, trip.ID, "alice_example_com", "Alice", "", models.RoleEditor)

	moved, err := s.MigrateMembership(ctx, legacy, id)
	if err != nil || !moved {
		t.Fatalf("MigrateMembership = %v, %v; want true", moved, err)
	}
	members := tripmemberstore.New(db)
	if ok, _ := members.Exists(ctx, trip.ID, legacy.UserID); ok {
		t.Error("legacy record still present")
	}
	m, err := members.Get(ctx, trip.ID, id.UserID)
	if err != nil {
		t.Fatalf("Get migrated: %v", err)
	}
	if m.ID != models.MemberKey(trip.ID, id.UserID) || m.Role != models.RoleEditor || m.Email != id.Email || m.PhotoURL != id.PhotoURL {
		t.Errorf("migrated = %+v", m)
	}
}

func TestMongoStore_BackfillOwnerKeepsPresetOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := reconcile.NewMongoStore(db, zap.NewNop())
	trips := tripstore.New(db)

	id := reconcile.Identity{UserID: "uid-alice", Email: "alice@example.com", DisplayName: "Alice"}
	preset, err := trips.Create(ctx, models.Trip{Name: "Preset", Currency: "TWD", CreatedBy: id.UserID, OwnerID: "uid-bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bare, err := trips.Create(ctx, models.Trip{Name: "Bare", Currency: "TWD", CreatedBy: id.UserID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, trip := range []models.Trip{preset, bare} {
		added, err := s.BackfillOwner(ctx, trip, id)
		if err != nil || !added {
			t.Fatalf("BackfillOwner %s = %v, %v; want true", trip.Name, added, err)
		}
	}

	got, _ := trips.GetByID(ctx, preset.ID)
	if got.OwnerID != "uid-bob" {
		t.Errorf("preset owner_id = %q, want uid-bob unchanged", got.OwnerID)
	}
	got, _ = trips.GetByID(ctx, bare.ID)
	if got.OwnerID != id.UserID || got.MemberCount == nil || *got.MemberCount != 1 {
		t.Errorf("bare trip = %+v, want owner uid-alice and one member", got)
	}

	added, err := s.BackfillOwner(ctx, bare, id)
	if err != nil || added {
		t.Errorf("second BackfillOwner = %v, %v; want false", added, err)
	}
}

package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/tripledger/internal/app/reconcile"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

// memStore is an in-memory Store. failTrips makes every write on those trips
// fail.
type memStore struct {
	mu        sync.Mutex
	members   map[string]models.TripMember
	invites   map[string]models.TripInvite
	trips     map[string]models.Trip
	failTrips map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		members:   map[string]models.TripMember{},
		invites:   map[string]models.TripInvite{},
		trips:     map[string]models.Trip{},
		failTrips: map[string]bool{},
	}
}

var errBoom = errors.New("boom")

func (s *memStore) put(m models.TripMember) {
	m.ID = models.MemberKey(m.TripID, m.UserID)
	s.members[m.ID] = m
}

func (s *memStore) InvitesFor(ctx context.Context, email string) ([]models.TripInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TripInvite
	for _, inv := range s.invites {
		if inv.EmailCI == email {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memStore) ClaimInvite(ctx context.Context, inv models.TripInvite, id reconcile.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTrips[inv.TripID] {
		return false, errBoom
	}
	_, exists := s.members[models.MemberKey(inv.TripID, id.UserID)]
	if !exists {
		s.put(models.TripMember{TripID: inv.TripID, UserID: id.UserID, Role: inv.Role, Email: id.Email, AddedBy: inv.InvitedBy})
	}
	delete(s.invites, inv.ID)
	return !exists, nil
}

func (s *memStore) MembershipsOf(ctx context.Context, userID string) ([]models.TripMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TripMember
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) HasMembership(ctx context.Context, tripID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[models.MemberKey(tripID, userID)]
	return ok, nil
}

func (s *memStore) MigrateMembership(ctx context.Context, legacy models.TripMember, id reconcile.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTrips[legacy.TripID] {
		return false, errBoom
	}
	if _, ok := s.members[models.MemberKey(legacy.TripID, id.UserID)]; ok {
		return false, nil
	}
	m := legacy
	m.UserID = id.UserID
	s.put(m)
	delete(s.members, legacy.ID)
	return true, nil
}

func (s *memStore) TripsCreatedBy(ctx context.Context, userID string) ([]models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trip
	for _, t := range s.trips {
		if t.CreatedBy == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) BackfillOwner(ctx context.Context, trip models.Trip, id reconcile.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTrips[trip.ID] {
		return false, errBoom
	}
	if _, ok := s.members[models.MemberKey(trip.ID, id.UserID)]; ok {
		return false, nil
	}
	s.put(models.TripMember{TripID: trip.ID, UserID: id.UserID, Role: models.RoleOwner})
	t := s.trips[trip.ID]
	if t.OwnerID == "" {
		t.OwnerID = id.UserID
	}
	s.trips[trip.ID] = t
	return true, nil
}

var alice = reconcile.Identity{UserID: "uid-alice", Email: "alice@example.com", DisplayName: "Alice"}

const aliceDerived = "alice_example_com"

func TestRun_MigratesLegacyMembership(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "t1", UserID: aliceDerived, Role: models.RoleEditor, DisplayName: "Alice"})

	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), alice)

	if rep.Migrated != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	m, ok := s.members[models.MemberKey("t1", alice.UserID)]
	if !ok {
		t.Fatal("real membership not created")
	}
	if m.Role != models.RoleEditor {
		t.Errorf("role = %q, want editor", m.Role)
	}
	if _, ok := s.members[models.MemberKey("t1", aliceDerived)]; ok {
		t.Error("legacy record should be deleted")
	}
}

func TestRun_LeavesOrphanWhenRealExists(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "t1", UserID: aliceDerived, Role: models.RoleViewer})
	s.put(models.TripMember{TripID: "t1", UserID: alice.UserID, Role: models.RoleEditor})

	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), alice)

	if rep.Orphaned != 1 || rep.Migrated != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if _, ok := s.members[models.MemberKey("t1", aliceDerived)]; !ok {
		t.Error("orphaned legacy record should be left in place")
	}
	if got := s.members[models.MemberKey("t1", alice.UserID)].Role; got != models.RoleEditor {
		t.Errorf("real record role = %q, want editor", got)
	}
}

func TestRun_BackfillsOwner(t *testing.T) {
	s := newMemStore()
	s.trips["t2"] = models.Trip{ID: "t2", Name: "Kyoto", CreatedBy: alice.UserID}

	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), alice)

	if rep.Backfilled != 1 {
		t.Fatalf("report = %+v", rep)
	}
	m, ok := s.members[models.MemberKey("t2", alice.UserID)]
	if !ok || m.Role != models.RoleOwner {
		t.Fatalf("owner membership = %+v, %v", m, ok)
	}
	if s.trips["t2"].OwnerID != alice.UserID {
		t.Errorf("owner_id = %q", s.trips["t2"].OwnerID)
	}
}

func TestRun_ClaimsInvites(t *testing.T) {
	s := newMemStore()
	s.invites["i1"] = models.TripInvite{ID: "i1", TripID: "t3", EmailCI: "alice@example.com", Role: models.RoleViewer, InvitedBy: "bob"}
	s.invites["i2"] = models.TripInvite{ID: "i2", TripID: "t4", EmailCI: "alice@example.com", Role: models.RoleEditor, InvitedBy: "bob"}
	s.put(models.TripMember{TripID: "t4", UserID: alice.UserID, Role: models.RoleViewer})

	id := alice
	id.Email = "  Alice@Example.com "
	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), id)

	if rep.InvitesClaimed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(s.invites) != 0 {
		t.Errorf("%d invites left, want 0", len(s.invites))
	}
	if got := s.members[models.MemberKey("t4", alice.UserID)].Role; got != models.RoleViewer {
		t.Errorf("existing membership changed to %q", got)
	}
}

func TestRun_Idempotent(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "t1", UserID: aliceDerived, Role: models.RoleEditor})
	s.trips["t2"] = models.Trip{ID: "t2", CreatedBy: alice.UserID}
	s.invites["i1"] = models.TripInvite{ID: "i1", TripID: "t3", EmailCI: "alice@example.com", Role: models.RoleViewer}

	r := reconcile.New(s, zap.NewNop())
	first := r.Run(context.Background(), alice)
	if !first.Changed() {
		t.Fatalf("first run changed nothing: %+v", first)
	}
	before := len(s.members)

	second := r.Run(context.Background(), alice)
	if second.Changed() || second.Failed != 0 || second.Orphaned != 0 {
		t.Errorf("second run = %+v, want no-op", second)
	}
	if len(s.members) != before {
		t.Errorf("membership count changed from %d to %d", before, len(s.members))
	}
}

func TestRun_FailureIsIsolatedPerTrip(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "bad", UserID: aliceDerived, Role: models.RoleViewer})
	s.put(models.TripMember{TripID: "good", UserID: aliceDerived, Role: models.RoleViewer})
	s.failTrips["bad"] = true

	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), alice)

	if rep.Failed != 1 || rep.Migrated != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if _, ok := s.members[models.MemberKey("good", alice.UserID)]; !ok {
		t.Error("good trip should be migrated")
	}
	if _, ok := s.members[models.MemberKey("bad", aliceDerived)]; !ok {
		t.Error("failed trip should keep its legacy record")
	}
}

func TestRun_NoEmailSkipsEmailPasses(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "t1", UserID: aliceDerived})
	s.trips["t2"] = models.Trip{ID: "t2", CreatedBy: alice.UserID}

	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), reconcile.Identity{UserID: alice.UserID})

	if rep.Migrated != 0 || rep.Backfilled != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRun_MigratesCaseSensitiveLegacyID(t *testing.T) {
	s := newMemStore()
	s.put(models.TripMember{TripID: "t1", UserID: "Alice_Example_com", Role: models.RoleViewer, DisplayName: "Alice"})
	s.put(models.TripMember{TripID: "t2", UserID: aliceDerived, Role: models.RoleEditor, DisplayName: "Alice"})

	id := alice
	id.ProviderEmail = "Alice@Example.com"
	rep := reconcile.New(s, zap.NewNop()).Run(context.Background(), id)

	if rep.Migrated != 2 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	for _, trip := range []string{"t1", "t2"} {
		if _, ok := s.members[models.MemberKey(trip, alice.UserID)]; !ok {
			t.Errorf("%s: real membership not created", trip)
		}
	}
	if _, ok := s.members[models.MemberKey("t1", "Alice_Example_com")]; ok {
		t.Error("mixed-case legacy record should be deleted")
	}
}

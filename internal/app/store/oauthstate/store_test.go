package oauthstate_test

import (
	"testing"
	"time"

	"github.com/dalemusser/tripledger/internal/app/store/oauthstate"
	"github.com/dalemusser/tripledger/internal/testutil"
)

func TestConsume_OneTimeUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := oauthstate.New(db)
	if err := store.Save(ctx, "state-1", "/trips", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ret, ok, err := store.Consume(ctx, "state-1")
	if err != nil || !ok {
		t.Fatalf("first Consume = (%q, %v, %v), want valid", ret, ok, err)
	}
	if ret != "/trips" {
		t.Errorf("return URL = %q, want /trips", ret)
	}

	if _, ok, err := store.Consume(ctx, "state-1"); err != nil || ok {
		t.Errorf("second Consume = (%v, %v), want invalid", ok, err)
	}
}

func TestConsume_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := oauthstate.New(db)
	if err := store.Save(ctx, "old", "", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, ok, _ := store.Consume(ctx, "old"); ok {
		t.Error("expired state should be invalid")
	}

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupExpired removed %d, want 1", n)
	}
}

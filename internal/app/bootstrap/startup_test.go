package bootstrap

import (
	"testing"

	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureAdmins_ProvisionsMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	if err := ensureAdmins(ctx, users, []string{"root@example.com"}, testLogger()); err != nil {
		t.Fatalf("ensureAdmins failed: %v", err)
	}

	u, err := users.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("admin not provisioned: %v", err)
	}
	if !u.IsAdmin {
		t.Error("expected provisioned account to be admin")
	}
	if !u.Provisioned {
		t.Error("expected a provisioned placeholder")
	}
}

func TestEnsureAdmins_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	existing, err := users.SyncLogin(ctx, userstore.Identity{ID: "g-1", Email: "lead@example.com", DisplayName: "Lead"})
	if err != nil {
		t.Fatalf("SyncLogin: %v", err)
	}
	if existing.IsAdmin {
		t.Fatal("precondition: user should not start as admin")
	}

	if err := ensureAdmins(ctx, users, []string{"lead@example.com"}, testLogger()); err != nil {
		t.Fatalf("ensureAdmins failed: %v", err)
	}

	u, err := users.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !u.IsAdmin {
		t.Error("expected existing user to be promoted")
	}

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"email_ci": "lead@example.com"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected no duplicate account, found %d", n)
	}
}

func TestEnsureAdmins_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	emails := []string{"root@example.com"}
	for i := 0; i < 2; i++ {
		if err := ensureAdmins(ctx, users, emails, testLogger()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	valid := AppConfig{
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "tripledger",
		SessionKey:    devSessionKey,
		TriggerMode:   "inline",
		SweepHourUTC:  3,
	}
	if err := ValidateConfig(nil, valid, testLogger()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad trigger mode", func(c *AppConfig) { c.TriggerMode = "polling" }},
		{"hour out of range", func(c *AppConfig) { c.SweepHourUTC = 24 }},
		{"minute out of range", func(c *AppConfig) { c.SweepMinuteUTC = -1 }},
		{"short session key", func(c *AppConfig) { c.SessionKey = "short" }},
		{"half google config", func(c *AppConfig) { c.GoogleClientID = "id" }},
		{"profile url without id", func(c *AppConfig) { c.IdentityProfileURL = "https://dir.example.com/users" }},
		{"missing database", func(c *AppConfig) { c.MongoDatabase = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := ValidateConfig(nil, cfg, testLogger()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

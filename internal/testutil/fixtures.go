package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context. Calling
// it again on the returned request adds to the same route context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc interface{}) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("insert into %s: %v", coll, err)
	}
}

// CreateUser creates an active, signed-in user with the given identity id.
func (f *Fixtures) CreateUser(ctx context.Context, id, email, name string) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	u := models.User{
		ID:          id,
		Email:       normalize.Email(email),
		EmailCI:     normalize.Email(email),
		DisplayName: name,
		Status:      models.UserStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: &now,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateAdmin creates an active admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, id, email, name string) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	u := models.User{
		ID:          id,
		Email:       normalize.Email(email),
		EmailCI:     normalize.Email(email),
		DisplayName: name,
		IsAdmin:     true,
		Status:      models.UserStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateDeletionRequest creates an inactive user whose deletion was
// requested at requestedAt.
func (f *Fixtures) CreateDeletionRequest(ctx context.Context, id, email string, requestedAt time.Time) models.User {
	f.t.Helper()
	u := models.User{
		ID:                id,
		Email:             normalize.Email(email),
		EmailCI:           normalize.Email(email),
		DisplayName:       "Leaving " + id,
		Status:            models.UserStatusInactive,
		CreatedAt:         requestedAt.Add(-24 * time.Hour),
		UpdatedAt:         requestedAt,
		DeleteRequestedAt: &requestedAt,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateTrip creates an active trip without any memberships.
func (f *Fixtures) CreateTrip(ctx context.Context, name, creatorID string) models.Trip {
	f.t.Helper()
	now := time.Now().UTC()
	t := models.Trip{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 7),
		Status:    models.TripStatusActive,
		Currency:  "TWD",
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "trips", t)
	return t
}

// AddMember inserts a membership record for user.
func (f *Fixtures) AddMember(ctx context.Context, tripID string, user models.User, role string) models.TripMember {
	f.t.Helper()
	return f.AddMemberByID(ctx, tripID, user.ID, user.DisplayName, user.Email, role)
}

// AddMemberByID inserts a membership record keyed by an arbitrary user id,
// such as a legacy derived id.
func (f *Fixtures) AddMemberByID(ctx context.Context, tripID, userID, name, email, role string) models.TripMember {
	f.t.Helper()
	now := time.Now().UTC()
	m := models.TripMember{
		ID:          models.MemberKey(tripID, userID),
		TripID:      tripID,
		UserID:      userID,
		Role:        role,
		DisplayName: name,
		Email:       email,
		JoinedAt:    now,
		AddedBy:     userID,
		UpdatedAt:   now,
	}
	f.insert(ctx, "trip_members", m)
	return m
}

// CreateExpense inserts an expense submitted by user.
func (f *Fixtures) CreateExpense(ctx context.Context, tripID string, user models.User, item string, amount float64) models.Expense {
	f.t.Helper()
	now := time.Now().UTC()
	e := models.Expense{
		ID:               uuid.NewString(),
		TripID:           tripID,
		Item:             item,
		ExpenseDate:      now,
		Amount:           amount,
		Currency:         "TWD",
		ExchangeRate:     1,
		AmountInBase:     amount,
		Category:         "food",
		PaymentMethod:    "cash",
		SubmittedAt:      now,
		SubmittedBy:      user.ID,
		SubmittedByName:  user.DisplayName,
		SubmittedByEmail: user.Email,
		UpdatedAt:        now,
	}
	f.insert(ctx, "expenses", e)
	return e
}

// CreateInvite records a pending invite for email.
func (f *Fixtures) CreateInvite(ctx context.Context, tripID, email, role, invitedBy string) models.TripInvite {
	f.t.Helper()
	inv := models.TripInvite{
		ID:        uuid.NewString(),
		TripID:    tripID,
		Email:     normalize.Email(email),
		EmailCI:   normalize.Email(email),
		Role:      role,
		InvitedBy: invitedBy,
		CreatedAt: time.Now().UTC(),
	}
	f.insert(ctx, "trip_invites", inv)
	return inv
}

// CreateNotification inserts one expense_added notification for userID.
func (f *Fixtures) CreateNotification(ctx context.Context, userID, tripID string, isRead bool) models.Notification {
	f.t.Helper()
	n := models.Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        models.NotifyExpenseAdded,
		TripID:      tripID,
		TripName:    "Fixture Trip",
		RelatedID:   uuid.NewString(),
		RelatedName: "Dinner",
		Message:     `Someone added expense item "Dinner" (100 TWD)`,
		IsRead:      isRead,
		CreatedAt:   time.Now().UTC(),
		ActorID:     "fixture-actor",
		ActorName:   "Someone",
	}
	f.insert(ctx, "notifications", n)
	return n
}

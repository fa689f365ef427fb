// internal/app/store/tripinvites/tripinvitestore.go
package tripinvitestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound  = errors.New("invite not found")
	ErrDuplicate = errors.New("email already invited to this trip")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trip_invites")}
}

// Create records a pending invite for an email that has no account yet.
func (s *Store) Create(ctx context.Context, inv models.TripInvite) (models.TripInvite, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.Email = normalize.Email(inv.Email)
	inv.EmailCI = inv.Email
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.TripInvite{}, ErrDuplicate
		}
		return models.TripInvite{}, err
	}
	return inv, nil
}

// ListByEmail returns the invites addressed to email across all trips.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]models.TripInvite, error) {
	cur, err := s.c.Find(ctx, bson.M{"email_ci": normalize.Email(email)})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.TripInvite
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListByTrip(ctx context.Context, tripID string) ([]models.TripInvite, error) {
	cur, err := s.c.Find(ctx, bson.M{"trip_id": tripID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.TripInvite
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an invite. Deleting one that is already gone is not an error
// so concurrent claims stay idempotent; the bool reports whether this call
// removed it.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Revoke deletes the invite for email on the trip.
func (s *Store) Revoke(ctx context.Context, tripID, email string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"trip_id": tripID, "email_ci": normalize.Email(email)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

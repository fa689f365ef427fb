// internal/app/store/tripmembers/tripmemberstore.go
package tripmemberstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tripledger/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("trip member not found")
	ErrDuplicate = errors.New("user is already a member of this trip")
	ErrBadRole   = errors.New(`role must be "owner", "editor" or "viewer"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trip_members")}
}

// ListByTrip returns every membership record of the trip.
func (s *Store) ListByTrip(ctx context.Context, tripID string) ([]models.TripMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.TripMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns every membership record keyed by userID, which may be a
// real identity id or a legacy derived id.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.TripMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.TripMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, tripID, userID string) (models.TripMember, error) {
	var m models.TripMember
	err := s.c.FindOne(ctx, bson.M{"trip_id": tripID, "user_id": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.TripMember{}, ErrNotFound
		}
		return models.TripMember{}, err
	}
	return m, nil
}

func (s *Store) Exists(ctx context.Context, tripID, userID string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"trip_id": tripID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of membership records of the trip.
func (s *Store) Count(ctx context.Context, tripID string) (int, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"trip_id": tripID})
	return int(n), err
}

// Add inserts a membership record. Missing id and timestamps are filled in.
func (s *Store) Add(ctx context.Context, m models.TripMember) (models.TripMember, error) {
	if !models.ValidRole(m.Role) {
		return models.TripMember{}, ErrBadRole
	}
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = models.MemberKey(m.TripID, m.UserID)
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.TripMember{}, ErrDuplicate
		}
		return models.TripMember{}, err
	}
	return m, nil
}

// UpdateRole changes a member's role and returns the record as it was before.
func (s *Store) UpdateRole(ctx context.Context, tripID, userID, role, updatedBy string) (models.TripMember, error) {
	if !models.ValidRole(role) {
		return models.TripMember{}, ErrBadRole
	}
	var before models.TripMember
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"trip_id": tripID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role, "updated_by": updatedBy, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.TripMember{}, ErrNotFound
		}
		return models.TripMember{}, err
	}
	return before, nil
}

// UpdateProfile refreshes the denormalized display name, email and photo on
// every membership of userID.
func (s *Store) UpdateProfile(ctx context.Context, userID, displayName, email, photoURL string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if displayName != "" {
		set["display_name"] = displayName
	}
	if email != "" {
		set["email"] = email
	}
	if photoURL != "" {
		set["photo_url"] = photoURL
	}
	_, err := s.c.UpdateMany(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	return err
}

// Remove deletes a membership and returns the removed record.
func (s *Store) Remove(ctx context.Context, tripID, userID string) (models.TripMember, error) {
	var removed models.TripMember
	err := s.c.FindOneAndDelete(ctx, bson.M{"trip_id": tripID, "user_id": userID}).Decode(&removed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.TripMember{}, ErrNotFound
		}
		return models.TripMember{}, err
	}
	return removed, nil
}

// DeleteByID removes one record by document id.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// TripIDsForUser lists the trips userID belongs to.
func (s *Store) TripIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.c.Distinct(ctx, "trip_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

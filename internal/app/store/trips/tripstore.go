// internal/app/store/trips/tripstore.go
package tripstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tripledger/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a trip does not exist.
var ErrNotFound = errors.New("trip not found")

type Store struct {
	c        *mongo.Collection
	members  *mongo.Collection
	invites  *mongo.Collection
	expenses *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("trips"),
		members:  db.Collection("trip_members"),
		invites:  db.Collection("trip_invites"),
		expenses: db.Collection("expenses"),
	}
}

// Create inserts t, assigning an id and timestamps when missing.
func (s *Store) Create(ctx context.Context, t models.Trip) (models.Trip, error) {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TripStatusActive
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Trip{}, err
	}
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Trip, error) {
	var t models.Trip
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Trip{}, ErrNotFound
		}
		return models.Trip{}, err
	}
	return t, nil
}

// GetMany loads the trips with the given ids, newest start date first.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]models.Trip, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Trip
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCreatedBy returns every trip whose creator is userID.
func (s *Store) ListCreatedBy(ctx context.Context, userID string) ([]models.Trip, error) {
	cur, err := s.c.Find(ctx, bson.M{"created_by": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Trip
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update is the set of editable trip fields.
type Update struct {
	Name             *string
	Description      *string
	StartDate        *time.Time
	EndDate          *time.Time
	Currency         *string
	CustomCurrencies []string
}

// UpdateFields applies the non-nil fields of u.
func (s *Store) UpdateFields(ctx context.Context, id string, u Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.StartDate != nil {
		set["start_date"] = *u.StartDate
	}
	if u.EndDate != nil {
		set["end_date"] = *u.EndDate
	}
	if u.Currency != nil {
		set["currency"] = *u.Currency
	}
	if u.CustomCurrencies != nil {
		set["custom_currencies"] = u.CustomCurrencies
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus flips a trip between active and inactive.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOwnerIfUnset populates owner_id and member_count only where they are
// missing, leaving any existing values alone.
func (s *Store) SetOwnerIfUnset(ctx context.Context, id, ownerID string, memberCount int) error {
	now := time.Now().UTC()
	if _, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "$or": bson.A{bson.M{"owner_id": bson.M{"$exists": false}}, bson.M{"owner_id": ""}}},
		bson.M{"$set": bson.M{"owner_id": ownerID, "updated_at": now}},
	); err != nil {
		return err
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "member_count": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"member_count": memberCount, "updated_at": now}},
	)
	return err
}

// SetMemberCount overwrites the denormalized member count.
func (s *Store) SetMemberCount(ctx context.Context, id string, n int) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"member_count": n}})
	return err
}

// Delete removes a trip and everything stored under it. Notifications keep
// their trip name snapshot and are left for their recipients to clear.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	for _, c := range []*mongo.Collection{s.members, s.invites, s.expenses} {
		if _, err := c.DeleteMany(ctx, bson.M{"trip_id": id}); err != nil {
			return err
		}
	}
	return nil
}

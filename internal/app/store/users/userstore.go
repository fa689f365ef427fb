// internal/app/store/users/userstore.go
package userstore

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
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("a user with this email already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func (s *Store) GetByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail prefers a signed-in account over a provisioned placeholder.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	opts := options.FindOne().SetSort(bson.D{{Key: "provisioned", Value: 1}})
	err := s.c.FindOne(ctx, bson.M{"email_ci": normalize.Email(email)}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// Provision creates a placeholder account under a surrogate id. The first
// login with the same email re-keys it to the identity provider's id.
func (s *Store) Provision(ctx context.Context, email, displayName string, isAdmin bool, createdBy string) (models.User, error) {
	email = normalize.Email(email)
	if _, err := s.GetByEmail(ctx, email); err == nil {
		return models.User{}, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}
	now := time.Now().UTC()
	u := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		EmailCI:     email,
		DisplayName: normalize.Name(displayName),
		IsAdmin:     isAdmin,
		Status:      models.UserStatusActive,
		Provisioned: true,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Identity is what the identity provider vouches for at login.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

// SyncLogin records a sign-in. It returns the stored user, creating it on
// first login and claiming a provisioned placeholder with the same email.
func (s *Store) SyncLogin(ctx context.Context, id Identity) (models.User, error) {
	now := time.Now().UTC()
	email := normalize.Email(id.Email)

	set := bson.M{"last_login_at": now, "updated_at": now, "email": email, "email_ci": email}
	if name := normalize.Name(id.DisplayName); name != "" {
		set["display_name"] = name
	}
	if id.PhotoURL != "" {
		set["photo_url"] = id.PhotoURL
	}

	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id.ID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, err
	}

	u = models.User{
		ID:          id.ID,
		Email:       email,
		EmailCI:     email,
		DisplayName: normalize.Name(id.DisplayName),
		PhotoURL:    id.PhotoURL,
		Status:      models.UserStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: &now,
	}

	var placeholder models.User
	perr := s.c.FindOne(ctx, bson.M{"email_ci": email, "provisioned": true}).Decode(&placeholder)
	switch {
	case perr == nil:
		u.IsAdmin = placeholder.IsAdmin
		u.Status = placeholder.Status
		u.CreatedAt = placeholder.CreatedAt
		u.CreatedBy = placeholder.CreatedBy
		if u.DisplayName == "" {
			u.DisplayName = placeholder.DisplayName
		}
	case !errors.Is(perr, mongo.ErrNoDocuments):
		return models.User{}, perr
	}

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			// concurrent first login for the same id
			return s.GetByID(ctx, id.ID)
		}
		return models.User{}, err
	}
	if perr == nil {
		if _, err := s.c.DeleteOne(ctx, bson.M{"_id": placeholder.ID}); err != nil {
			return u, err
		}
	}
	return u, nil
}

// RequestDeletion starts the grace period: the account becomes inactive and
// delete_requested_at is stamped.
func (s *Store) RequestDeletion(ctx context.Context, id string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"status":              models.UserStatusInactive,
			"delete_requested_at": at,
			"updated_at":          at,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelDeletion reactivates an account whose deletion is still pending.
func (s *Store) CancelDeletion(ctx context.Context, id string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{
			"$set":   bson.M{"status": models.UserStatusActive, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"delete_requested_at": ""},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDeletionDue returns inactive, not yet deleted users whose deletion was
// requested at or before cutoff.
func (s *Store) ListDeletionDue(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"status":              models.UserStatusInactive,
		"delete_requested_at": bson.M{"$lte": cutoff},
		"deleted_at":          bson.M{"$exists": false},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDeleted completes a deletion: deleted_at is stamped and the display
// name replaced. The record itself is kept.
func (s *Store) MarkDeleted(ctx context.Context, id string, at time.Time, displayName string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"deleted_at":   at,
			"display_name": displayName,
			"updated_at":   at,
		},
		"$unset": bson.M{"photo_url": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns every signed-in, not deleted account.
func (s *Store) ListActive(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"provisioned": bson.M{"$ne": true},
		"deleted_at":  bson.M{"$exists": false},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdatePhotoURL(ctx context.Context, id, url string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"photo_url":  url,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// SetAdmin grants the admin flag.
func (s *Store) SetAdmin(ctx context.Context, id string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_admin":   true,
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

package reconcile

import (
	"context"
	"time"

	tripinvitestore "github.com/dalemusser/tripledger/internal/app/store/tripinvites"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/app/system/txn"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MongoStore implements Store on the trip collections. Each per-trip change
// runs in one transaction when the deployment supports them.
type MongoStore struct {
	db      *mongo.Database
	trips   *tripstore.Store
	members *tripmemberstore.Store
	invites *tripinvitestore.Store
	log     *zap.Logger
}

func NewMongoStore(db *mongo.Database, log *zap.Logger) *MongoStore {
	return &MongoStore{
		db:      db,
		trips:   tripstore.New(db),
		members: tripmemberstore.New(db),
		invites: tripinvitestore.New(db),
		log:     log,
	}
}

func (s *MongoStore) InvitesFor(ctx context.Context, email string) ([]models.TripInvite, error) {
	return s.invites.ListByEmail(ctx, email)
}

// ClaimInvite turns an invite into a membership and deletes it. When the user
// is already a member the invite is only deleted.
func (s *MongoStore) ClaimInvite(ctx context.Context, inv models.TripInvite, id Identity) (bool, error) {
	var claimed bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		claimed = false
		exists, err := s.members.Exists(ctx, inv.TripID, id.UserID)
		if err != nil {
			return err
		}
		if !exists {
			name := id.DisplayName
			if name == "" {
				name = inv.DisplayName
			}
			if _, err := s.members.Add(ctx, models.TripMember{
				TripID:      inv.TripID,
				UserID:      id.UserID,
				Role:        inv.Role,
				DisplayName: name,
				Email:       id.Email,
				PhotoURL:    id.PhotoURL,
				AddedBy:     inv.InvitedBy,
			}); err != nil {
				return err
			}
			claimed = true
		}
		if _, err := s.invites.Delete(ctx, inv.ID); err != nil {
			return err
		}
		if claimed {
			return s.recount(ctx, inv.TripID)
		}
		return nil
	})
	return claimed, err
}

func (s *MongoStore) MembershipsOf(ctx context.Context, userID string) ([]models.TripMember, error) {
	return s.members.ListByUser(ctx, userID)
}

func (s *MongoStore) HasMembership(ctx context.Context, tripID, userID string) (bool, error) {
	return s.members.Exists(ctx, tripID, userID)
}

// MigrateMembership copies a legacy record to the real user id and deletes
// the legacy one. It reports false, writing nothing, if a real record appeared
// in the meantime.
func (s *MongoStore) MigrateMembership(ctx context.Context, legacy models.TripMember, id Identity) (bool, error) {
	var moved bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		moved = false
		exists, err := s.members.Exists(ctx, legacy.TripID, id.UserID)
		if err != nil || exists {
			return err
		}
		m := legacy
		m.ID = ""
		m.UserID = id.UserID
		if m.Email == "" {
			m.Email = id.Email
		}
		if m.PhotoURL == "" {
			m.PhotoURL = id.PhotoURL
		}
		if _, err := s.members.Add(ctx, m); err != nil {
			return err
		}
		if err := s.members.DeleteByID(ctx, legacy.ID); err != nil {
			return err
		}
		moved = true
		return nil
	})
	return moved, err
}

func (s *MongoStore) TripsCreatedBy(ctx context.Context, userID string) ([]models.Trip, error) {
	return s.trips.ListCreatedBy(ctx, userID)
}

// BackfillOwner creates the missing owner membership for a trip's creator
// and fills owner_id and member_count where they are unset.
func (s *MongoStore) BackfillOwner(ctx context.Context, trip models.Trip, id Identity) (bool, error) {
	var added bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		added = false
		exists, err := s.members.Exists(ctx, trip.ID, id.UserID)
		if err != nil || exists {
			return err
		}
		joined := trip.CreatedAt
		if joined.IsZero() {
			joined = time.Now().UTC()
		}
		if _, err := s.members.Add(ctx, models.TripMember{
			TripID:      trip.ID,
			UserID:      id.UserID,
			Role:        models.RoleOwner,
			DisplayName: id.DisplayName,
			Email:       id.Email,
			PhotoURL:    id.PhotoURL,
			JoinedAt:    joined,
			AddedBy:     id.UserID,
		}); err != nil {
			return err
		}
		n, err := s.members.Count(ctx, trip.ID)
		if err != nil {
			return err
		}
		if err := s.trips.SetOwnerIfUnset(ctx, trip.ID, id.UserID, n); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

func (s *MongoStore) recount(ctx context.Context, tripID string) error {
	n, err := s.members.Count(ctx, tripID)
	if err != nil {
		return err
	}
	return s.trips.SetMemberCount(ctx, tripID, n)
}

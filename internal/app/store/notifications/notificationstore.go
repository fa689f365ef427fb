// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dalemusser/tripledger/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps list and subscription results when the caller passes 0.
const DefaultLimit = 50

// Collection is the notifications collection name.
const Collection = "notifications"

const markParallelism = 16

var ErrNotFound = errors.New("notification not found")

// Every query below is scoped by user_id; a recipient can never read or
// change another user's notifications.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Insert writes n. It returns inserted=false without error when a record
// with the same dedup key already exists.
func (s *Store) Insert(ctx context.Context, n models.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		if n.DedupKey != "" && wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns the newest notifications for userID.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]models.Notification, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
}

// MarkRead flips one notification to read.
func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of userID, one write per
// notification with up to markParallelism in flight. There is no atomicity
// across the batch; the count reflects the writes that succeeded.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ids, err := s.c.Distinct(ctx, "_id", bson.M{"user_id": userID, "is_read": false})
	if err != nil {
		return 0, err
	}

	var marked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(markParallelism)
	for _, id := range ids {
		g.Go(func() error {
			res, err := s.c.UpdateOne(gctx,
				bson.M{"_id": id, "user_id": userID, "is_read": false},
				bson.M{"$set": bson.M{"is_read": true}})
			if err != nil {
				return err
			}
			marked.Add(res.ModifiedCount)
			return nil
		})
	}
	err = g.Wait()
	return marked.Load(), err
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllRead removes every read notification of userID.
func (s *Store) DeleteAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "is_read": true})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByTrip removes userID's notifications about one trip.
func (s *Store) DeleteByTrip(ctx context.Context, userID, tripID string) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "trip_id": tripID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Stats counts userID's notifications in total, unread, per type and per trip.
func (s *Store) Stats(ctx context.Context, userID string) (models.NotificationStats, error) {
	st := models.NotificationStats{ByType: map[string]int{}, ByTrip: map[string]int{}}

	opts := options.Find().SetProjection(bson.M{"type": 1, "trip_id": 1, "is_read": 1})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return st, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			Type   string `bson:"type"`
			TripID string `bson:"trip_id"`
			IsRead bool   `bson:"is_read"`
		}
		if err := cur.Decode(&row); err != nil {
			return st, err
		}
		st.Total++
		if !row.IsRead {
			st.Unread++
		}
		st.ByType[row.Type]++
		st.ByTrip[row.TripID]++
	}
	return st, cur.Err()
}

// Watch calls fn with userID's newest notifications once immediately and
// again after every change to them, until ctx is done. Requires a replica set.
// Deletes are matched on their pre-image, so they only trigger a push when
// pre-images are enabled on the collection (see indexes.EnablePreImages);
// without them another user's deletes never wake this watcher and the
// user's own deletes are picked up by the next insert or update.
func (s *Store) Watch(ctx context.Context, userID string, limit int, fn func([]models.Notification)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.user_id": userID},
			bson.M{"operationType": "delete", "fullDocumentBeforeChange.user_id": userID},
		}}}},
	}
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	cs, err := s.c.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	push := func() error {
		list, err := s.List(ctx, userID, limit)
		if err != nil {
			return err
		}
		fn(list)
		return nil
	}

	if err := push(); err != nil {
		return err
	}
	for cs.Next(ctx) {
		if err := push(); err != nil {
			return err
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

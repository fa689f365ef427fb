// internal/app/store/checkpoints/checkpointstore.go
package checkpointstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists change stream resume tokens, one document per watcher.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trigger_checkpoints")}
}

type checkpoint struct {
	ID          string    `bson:"_id"`
	ResumeToken bson.Raw  `bson:"resume_token"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// Load returns the saved token for name, or nil when none was saved.
func (s *Store) Load(ctx context.Context, name string) (bson.Raw, error) {
	var cp checkpoint
	if err := s.c.FindOne(ctx, bson.M{"_id": name}).Decode(&cp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return cp.ResumeToken, nil
}

// Save upserts the token for name.
func (s *Store) Save(ctx context.Context, name string, token bson.Raw) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"resume_token": token, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	return err
}

// Clear forgets the token, making the next run start from now.
func (s *Store) Clear(ctx context.Context, name string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": name})
	return err
}

package sweeper

import (
	"context"
	"time"

	expensestore "github.com/dalemusser/tripledger/internal/app/store/expenses"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/txn"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MongoStore implements Store on the users and expenses collections.
type MongoStore struct {
	db       *mongo.Database
	users    *userstore.Store
	expenses *expensestore.Store
	log      *zap.Logger
}

func NewMongoStore(db *mongo.Database, log *zap.Logger) *MongoStore {
	return &MongoStore{
		db:       db,
		users:    userstore.New(db),
		expenses: expensestore.New(db),
		log:      log,
	}
}

func (s *MongoStore) DueForDeletion(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	return s.users.ListDeletionDue(ctx, cutoff)
}

func (s *MongoStore) TripsWithExpensesBy(ctx context.Context, userID string) ([]string, error) {
	return s.expenses.TripIDsBySubmitter(ctx, userID)
}

func (s *MongoStore) AnonymizeExpenses(ctx context.Context, tripID, userID, name string) (int64, error) {
	var n int64
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		n, err = s.expenses.AnonymizeSubmitter(ctx, tripID, userID, name)
		return err
	})
	return n, err
}

func (s *MongoStore) MarkDeleted(ctx context.Context, userID string, at time.Time, name string) error {
	return s.users.MarkDeleted(ctx, userID, at, name)
}

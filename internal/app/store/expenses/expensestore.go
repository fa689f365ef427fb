// internal/app/store/expenses/expensestore.go
package expensestore

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

var ErrNotFound = errors.New("expense not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("expenses")}
}

// Create inserts e. AmountInBase is derived from the exchange rate when unset.
func (s *Store) Create(ctx context.Context, e models.Expense) (models.Expense, error) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExchangeRate == 0 {
		e.ExchangeRate = 1
	}
	if e.AmountInBase == 0 {
		e.AmountInBase = e.Amount * e.ExchangeRate
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now
	}
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Expense{}, err
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, tripID, id string) (models.Expense, error) {
	var e models.Expense
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "trip_id": tripID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}
	return e, nil
}

// ListByTrip returns a trip's expenses, most recent expense date first.
func (s *Store) ListByTrip(ctx context.Context, tripID string) ([]models.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expense_date", Value: -1}, {Key: "submitted_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Expense
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Replace overwrites the editable fields of e and returns the stored result.
// Submitter fields are never changed by an edit.
func (s *Store) Replace(ctx context.Context, e models.Expense) (models.Expense, error) {
	if e.ExchangeRate == 0 {
		e.ExchangeRate = 1
	}
	e.AmountInBase = e.Amount * e.ExchangeRate
	e.UpdatedAt = time.Now().UTC()

	var out models.Expense
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": e.ID, "trip_id": e.TripID},
		bson.M{"$set": bson.M{
			"item":               e.Item,
			"expense_date":       e.ExpenseDate,
			"amount":             e.Amount,
			"currency":           e.Currency,
			"exchange_rate":      e.ExchangeRate,
			"exchange_rate_time": e.ExchangeRateTime,
			"amount_in_base":     e.AmountInBase,
			"category":           e.Category,
			"payment_method":     e.PaymentMethod,
			"receipt_image_urls": e.ReceiptImageURLs,
			"note":               e.Note,
			"updated_at":         e.UpdatedAt,
			"updated_by":         e.UpdatedBy,
			"updated_by_name":    e.UpdatedByName,
			"updated_by_email":   e.UpdatedByEmail,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}
	return out, nil
}

// Delete removes an expense and returns it.
func (s *Store) Delete(ctx context.Context, tripID, id string) (models.Expense, error) {
	var e models.Expense
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id, "trip_id": tripID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}
	return e, nil
}

// TripIDsBySubmitter lists the trips holding at least one expense by userID.
func (s *Store) TripIDsBySubmitter(ctx context.Context, userID string) ([]string, error) {
	vals, err := s.c.Distinct(ctx, "trip_id", bson.M{"submitted_by": userID})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// AnonymizeSubmitter marks every expense userID submitted in the trip as
// belonging to a deleted user and replaces the submitter name.
func (s *Store) AnonymizeSubmitter(ctx context.Context, tripID, userID, name string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"trip_id": tripID, "submitted_by": userID},
		bson.M{"$set": bson.M{
			"is_deleted_user":   true,
			"deleted_user_name": name,
			"submitted_by_name": name,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

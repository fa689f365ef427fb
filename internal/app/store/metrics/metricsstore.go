package metricsstore

import (
	"context"

	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts are the totals exported as gauges.
type Counts struct {
	Trips               int64
	ActiveTrips         int64
	Members             int64
	PendingInvites      int64
	Expenses            int64
	UnreadNotifications int64
	PendingDeletions    int64
}

// FetchCounts returns collection totals. On error a counter stays 0.
func FetchCounts(ctx context.Context, db *mongo.Database) Counts {
	var out Counts
	count := func(coll string, filter bson.M, dst *int64) {
		if n, err := db.Collection(coll).CountDocuments(ctx, filter); err == nil {
			*dst = n
		}
	}

	count("trips", bson.M{}, &out.Trips)
	count("trips", bson.M{"status": models.TripStatusActive}, &out.ActiveTrips)
	count("trip_members", bson.M{}, &out.Members)
	count("trip_invites", bson.M{}, &out.PendingInvites)
	count("expenses", bson.M{}, &out.Expenses)
	count("notifications", bson.M{"is_read": false}, &out.UnreadNotifications)
	count("users", bson.M{
		"status":              models.UserStatusInactive,
		"delete_requested_at": bson.M{"$exists": true},
		"deleted_at":          bson.M{"$exists": false},
	}, &out.PendingDeletions)
	return out
}

// Source adapts FetchCounts to the metrics collector.
type Source struct {
	DB *mongo.Database
}

func (s Source) Counts(ctx context.Context) map[string]int64 {
	c := FetchCounts(ctx, s.DB)
	return map[string]int64{
		"trips":                c.Trips,
		"trips_active":         c.ActiveTrips,
		"trip_members":         c.Members,
		"trip_invites":         c.PendingInvites,
		"expenses":             c.Expenses,
		"notifications_unread": c.UnreadNotifications,
		"users_pending_delete": c.PendingDeletions,
	}
}

// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	notificationstore "github.com/dalemusser/tripledger/internal/app/store/notifications"
	"github.com/dalemusser/tripledger/internal/app/system/indexes"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the MongoDB client and verifies it with a ping. WAFFLE
// aborts startup when this returns an error.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes every store relies on. In changestream
// mode it also enables pre-images so delete events carry the removed
// document; a standalone server cannot do that, which is logged rather than
// fatal.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ictx, cancel := context.WithTimeout(ctx, timeouts.Batch())
	defer cancel()

	if err := indexes.EnsureAll(ictx, deps.MongoDatabase, logger); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}

	// Notification subscriptions match deletes on their pre-image.
	if err := indexes.EnablePreImages(ictx, deps.MongoDatabase, notificationstore.Collection); err != nil {
		logger.Warn("could not enable notification pre-images; deletes will not push to subscribers",
			zap.Error(err))
	}

	if appCfg.TriggerMode == triggers.ModeChangeStream {
		err := indexes.EnablePreImages(ictx, deps.MongoDatabase, triggers.ExpensesCollection, triggers.TripMembersCollection)
		if err != nil {
			logger.Warn("could not enable change stream pre-images; delete notifications will be skipped",
				zap.Error(err))
		}
	}
	return nil
}

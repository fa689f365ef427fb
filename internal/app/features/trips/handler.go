// internal/app/features/trips/handler.go
package trips

import (
	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the /api/trips endpoints.
type Handler struct {
	DB      *mongo.Database
	Trips   *tripstore.Store
	Members *tripmemberstore.Store
	Events  triggers.Publisher
	ErrLog  *apierrors.ErrorLogger
	Log     *zap.Logger
}

// NewHandler wires the trip stores. events receives the owner membership of
// new trips; pass triggers.Noop{} when change streams dispatch instead.
func NewHandler(db *mongo.Database, events triggers.Publisher, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if events == nil {
		events = triggers.Noop{}
	}
	return &Handler{
		DB:      db,
		Trips:   tripstore.New(db),
		Members: tripmemberstore.New(db),
		Events:  events,
		ErrLog:  errLog,
		Log:     logger,
	}
}

// internal/app/features/expenses/handler.go
package expenses

import (
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/features/shared"
	"github.com/dalemusser/tripledger/internal/app/policy/trippolicy"
	expensestore "github.com/dalemusser/tripledger/internal/app/store/expenses"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves /api/trips/{tripID}/expenses.
type Handler struct {
	Trips    *tripstore.Store
	Members  *tripmemberstore.Store
	Expenses *expensestore.Store
	Events   triggers.Publisher
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, events triggers.Publisher, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if events == nil {
		events = triggers.Noop{}
	}
	return &Handler{
		Trips:    tripstore.New(db),
		Members:  tripmemberstore.New(db),
		Expenses: expensestore.New(db),
		Events:   events,
		ErrLog:   errLog,
		Log:      logger,
	}
}

func (h *Handler) access(w http.ResponseWriter, r *http.Request) (trippolicy.Access, *auth.SessionUser, bool) {
	return shared.TripAccess(w, r, h.Trips, h.Members, h.ErrLog)
}

// writable is access plus the write checks shared by create, edit and delete.
func (h *Handler) writable(w http.ResponseWriter, r *http.Request) (trippolicy.Access, *auth.SessionUser, bool) {
	a, u, ok := h.access(w, r)
	if !ok {
		return a, u, false
	}
	if !a.CanWrite() {
		apierrors.Forbidden(w, "viewers cannot change expenses")
		return a, u, false
	}
	if a.Trip.Status == models.TripStatusInactive {
		apierrors.BadRequest(w, "the trip is inactive")
		return a, u, false
	}
	return a, u, true
}

// internal/app/features/members/handler.go
package members

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/features/shared"
	"github.com/dalemusser/tripledger/internal/app/policy/trippolicy"
	tripinvitestore "github.com/dalemusser/tripledger/internal/app/store/tripinvites"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves /api/trips/{tripID}/members. Membership changes are
// published to the notification dispatcher after they commit.
type Handler struct {
	DB      *mongo.Database
	Trips   *tripstore.Store
	Members *tripmemberstore.Store
	Invites *tripinvitestore.Store
	Users   *userstore.Store
	Events  triggers.Publisher
	ErrLog  *apierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(db *mongo.Database, events triggers.Publisher, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if events == nil {
		events = triggers.Noop{}
	}
	return &Handler{
		DB:      db,
		Trips:   tripstore.New(db),
		Members: tripmemberstore.New(db),
		Invites: tripinvitestore.New(db),
		Users:   userstore.New(db),
		Events:  events,
		ErrLog:  errLog,
		Log:     logger,
	}
}

func (h *Handler) access(w http.ResponseWriter, r *http.Request) (trippolicy.Access, *auth.SessionUser, bool) {
	return shared.TripAccess(w, r, h.Trips, h.Members, h.ErrLog)
}

// recount rewrites the trip's denormalized member count.
func (h *Handler) recount(ctx context.Context, tripID string) error {
	n, err := h.Members.Count(ctx, tripID)
	if err != nil {
		return err
	}
	return h.Trips.SetMemberCount(ctx, tripID, n)
}

// internal/app/features/account/handler.go
package account

import (
	"context"
	"time"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/auditlog"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Users is the part of the user store the account endpoints need.
type Users interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	RequestDeletion(ctx context.Context, id string, at time.Time) error
	CancelDeletion(ctx context.Context, id string) error
}

// Handler owns the signed-in user's account endpoints.
type Handler struct {
	Users    Users
	AuditLog *auditlog.Logger
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
	now      func() time.Time
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// internal/app/features/admin/handler.go
package admin

import (
	"context"

	apierrors "github.com/dalemusser/tripledger/internal/app/features/errors"
	"github.com/dalemusser/tripledger/internal/app/identity"
	"github.com/dalemusser/tripledger/internal/app/sweeper"
	"github.com/dalemusser/tripledger/internal/app/system/auditlog"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

// PhotoResyncer refreshes profile photos from the identity provider.
type PhotoResyncer interface {
	Run(ctx context.Context) (identity.ResyncResult, error)
}

// AccountSweeper purges accounts past their deletion grace period.
type AccountSweeper interface {
	Run(ctx context.Context) (sweeper.Result, error)
}

// Provisioner creates placeholder accounts ahead of first login.
type Provisioner interface {
	Provision(ctx context.Context, email, displayName string, isAdmin bool, createdBy string) (models.User, error)
}

// Handler serves the /admin endpoints. Resync is nil when no identity
// directory is configured.
type Handler struct {
	Resync   PhotoResyncer
	Sweeper  AccountSweeper
	Users    Provisioner
	AuditLog *auditlog.Logger
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(resync PhotoResyncer, sw AccountSweeper, users Provisioner, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Resync:   resync,
		Sweeper:  sw,
		Users:    users,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

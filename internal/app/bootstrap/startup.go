// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/tripledger/internal/app/features/admin"
	notificationsfeature "github.com/dalemusser/tripledger/internal/app/features/notifications"
	"github.com/dalemusser/tripledger/internal/app/identity"
	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/app/reconcile"
	auditstore "github.com/dalemusser/tripledger/internal/app/store/audit"
	checkpointstore "github.com/dalemusser/tripledger/internal/app/store/checkpoints"
	metricsstore "github.com/dalemusser/tripledger/internal/app/store/metrics"
	notificationstore "github.com/dalemusser/tripledger/internal/app/store/notifications"
	"github.com/dalemusser/tripledger/internal/app/store/oauthstate"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	tripstore "github.com/dalemusser/tripledger/internal/app/store/trips"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/sweeper"
	"github.com/dalemusser/tripledger/internal/app/system/auditlog"
	"github.com/dalemusser/tripledger/internal/app/system/locks"
	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/app/system/ratelimit"
	"github.com/dalemusser/tripledger/internal/app/system/tasks"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// services are the long-lived components built in Startup and used by
// BuildHandler and Shutdown.
type services struct {
	audit      *auditlog.Logger
	events     triggers.Publisher
	inline     *triggers.Inline
	watcher    *triggers.Watcher
	scheduler  *tasks.Scheduler
	redis      *redis.Client
	reconciler *reconcile.Reconciler
	sweeper    *sweeper.Sweeper
	resync     admin.PhotoResyncer // nil when the identity directory is not configured
	hub        *notificationsfeature.Hub

	signInLimiter *ratelimit.Limiter
}

var svc *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// promotes the configured admins, builds the notification pipeline for the
// selected trigger mode and starts the scheduled jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	users := userstore.New(db)

	if err := ensureAdmins(ctx, users, appCfg.AdminEmails, logger); err != nil {
		return fmt.Errorf("ensure admins: %w", err)
	}

	s := &services{
		audit: auditlog.New(auditstore.New(db), logger, auditlog.Config{
			Auth:    appCfg.AuditLogAuth,
			Account: appCfg.AuditLogAccount,
			Admin:   appCfg.AuditLogAdmin,
		}),
		events:     triggers.Noop{},
		reconciler: reconcile.New(reconcile.NewMongoStore(db, logger), logger),
	}
	s.sweeper = sweeper.New(sweeper.NewMongoStore(db, logger), s.audit, logger)

	startTriggers(s, db, appCfg.TriggerMode, logger)

	if cfg := identityConfig(appCfg); cfg.Configured() {
		dir := identity.NewDirectory(context.Background(), cfg)
		s.resync = identity.NewResyncer(dir, users, tripmemberstore.New(db), logger)
	} else {
		logger.Info("identity directory not configured; photo resync disabled")
	}

	var locker tasks.Locker
	if appCfg.RedisAddr != "" {
		rctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		client, err := locks.Connect(rctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		cancel()
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		s.redis = client
		locker = locks.NewRedisLocker(client, "tripledger:lock:", logger)
		logger.Info("job leases use Redis", zap.String("addr", appCfg.RedisAddr))
	}

	s.scheduler = tasks.NewScheduler(logger, locker)
	s.scheduler.Add(tasks.AccountSweepJob(s.sweeper, logger, appCfg.SweepHourUTC, appCfg.SweepMinuteUTC, timeouts.Batch()))
	s.scheduler.Add(tasks.OAuthStateCleanupJob(oauthstate.New(db), logger))
	s.scheduler.Start()

	metrics.RegisterCollectionGauges(metricsstore.Source{DB: db})

	svc = s
	return nil
}

// startTriggers wires mutations to the dispatcher according to mode.
func startTriggers(s *services, db *mongo.Database, mode string, logger *zap.Logger) {
	d := notify.NewDispatcher(
		tripstore.New(db),
		tripmemberstore.New(db),
		userstore.New(db),
		notificationstore.New(db),
		logger,
	)

	switch mode {
	case triggers.ModeChangeStream:
		s.watcher = triggers.NewWatcher(db, checkpointstore.New(db), d, logger)
		s.watcher.Start()
	case triggers.ModeInline:
		s.inline = triggers.NewInline(d, logger)
		s.events = s.inline
		logger.Info("notifications dispatched inline from request handlers")
	default:
		logger.Warn("notification triggers are off")
	}
}

func identityConfig(appCfg AppConfig) identity.Config {
	return identity.Config{
		TokenURL:     appCfg.IdentityTokenURL,
		ClientID:     appCfg.IdentityClientID,
		ClientSecret: appCfg.IdentityClientSecret,
		Scopes:       appCfg.IdentityScopes,
		ProfileURL:   appCfg.IdentityProfileURL,
	}
}

// ensureAdmins grants the admin flag to every configured email. Accounts
// that do not exist yet are provisioned so the first sign-in lands as admin.
func ensureAdmins(ctx context.Context, users *userstore.Store, emails []string, logger *zap.Logger) error {
	for _, email := range emails {
		u, err := users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, userstore.ErrNotFound):
			if _, err := users.Provision(ctx, email, "", true, "system"); err != nil {
				return fmt.Errorf("provision %s: %w", email, err)
			}
			logger.Info("provisioned admin account", zap.String("email", email))
		case err != nil:
			return err
		case !u.IsAdmin:
			if err := users.SetAdmin(ctx, u.ID); err != nil {
				return fmt.Errorf("promote %s: %w", email, err)
			}
			logger.Info("promoted existing user to admin", zap.String("email", email))
		}
	}
	return nil
}

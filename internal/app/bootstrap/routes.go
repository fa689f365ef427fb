// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	accountfeature "github.com/dalemusser/tripledger/internal/app/features/account"
	adminfeature "github.com/dalemusser/tripledger/internal/app/features/admin"
	authgooglefeature "github.com/dalemusser/tripledger/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/tripledger/internal/app/features/errors"
	expensesfeature "github.com/dalemusser/tripledger/internal/app/features/expenses"
	healthfeature "github.com/dalemusser/tripledger/internal/app/features/health"
	logoutfeature "github.com/dalemusser/tripledger/internal/app/features/logout"
	membersfeature "github.com/dalemusser/tripledger/internal/app/features/members"
	notificationsfeature "github.com/dalemusser/tripledger/internal/app/features/notifications"
	tripsfeature "github.com/dalemusser/tripledger/internal/app/features/trips"
	"github.com/dalemusser/tripledger/internal/app/store/oauthstate"
	tripmemberstore "github.com/dalemusser/tripledger/internal/app/store/tripmembers"
	userstore "github.com/dalemusser/tripledger/internal/app/store/users"
	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// signInLimit is the number of sign-in requests allowed per client IP per
// minute.
const signInLimit = 20

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. TripLedger is a JSON API: the session middleware
// loads the signed-in user for every request and each feature router guards
// its own endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("startup has not run")
	}
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Authentication
	users := userstore.New(db)
	googleHandler := authgooglefeature.NewHandler(
		sessionMgr,
		svc.audit,
		oauthstate.New(db),
		users,
		tripmemberstore.New(db),
		svc.reconciler,
		appCfg.GoogleClientID,
		appCfg.GoogleClientSecret,
		appCfg.BaseURL,
		appCfg.AdminEmails,
		logger,
	)
	svc.signInLimiter = ratelimit.New(signInLimit, time.Minute)
	r.With(ratelimit.PerIP(svc.signInLimiter, logger)).
		Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Trips and everything scoped to one trip
	tripsHandler := tripsfeature.NewHandler(db, svc.events, errLog, logger)
	membersHandler := membersfeature.NewHandler(db, svc.events, errLog, logger)
	expensesHandler := expensesfeature.NewHandler(db, svc.events, errLog, logger)
	r.Route("/api/trips", func(r chi.Router) {
		r.Mount("/", tripsfeature.Routes(tripsHandler, sessionMgr))
		r.Mount("/{tripID}/members", membersfeature.Routes(membersHandler, sessionMgr))
		r.Mount("/{tripID}/expenses", expensesfeature.Routes(expensesHandler, sessionMgr))
	})

	// Notification inbox and live feed
	notificationsHandler := notificationsfeature.NewHandler(db, errLog, logger)
	svc.hub = notificationsHandler.Push
	r.Mount("/api/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	accountHandler := accountfeature.NewHandler(db, svc.audit, errLog, logger)
	r.Mount("/api/account", accountfeature.Routes(accountHandler, sessionMgr))

	adminHandler := adminfeature.NewHandler(svc.resync, svc.sweeper, users, svc.audit, errLog, logger)
	r.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))

	return r, nil
}

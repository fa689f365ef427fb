// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/app/triggers"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for TripLedger.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TRIPLEDGER_MONGO_URI, TRIPLEDGER_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tripledger", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 5, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tripledger-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 720h)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL used for OAuth callbacks"},
	{Name: "admin_emails", Default: "", Desc: "Comma-separated emails that get administrator access"},

	// Redis (optional)
	{Name: "redis_addr", Default: "", Desc: "Redis address for job leases (blank disables)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Notifications and lifecycle jobs
	{Name: "trigger_mode", Default: triggers.ModeChangeStream, Desc: "Notification trigger: 'changestream', 'inline' or 'off'"},
	{Name: "sweep_hour_utc", Default: 3, Desc: "Hour (UTC) the account sweeper runs"},
	{Name: "sweep_minute_utc", Default: 0, Desc: "Minute the account sweeper runs"},

	// Identity directory for the admin photo resync
	{Name: "identity_token_url", Default: "", Desc: "OAuth2 token URL of the identity directory"},
	{Name: "identity_client_id", Default: "", Desc: "Client ID for the identity directory"},
	{Name: "identity_client_secret", Default: "", Desc: "Client secret for the identity directory"},
	{Name: "identity_scopes", Default: "", Desc: "Comma-separated scopes requested for directory tokens"},
	{Name: "identity_profile_url", Default: "", Desc: "Profile lookup URL; {id} is replaced by the user id"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_account", Default: "all", Desc: "Account lifecycle event logging"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// TRIPLEDGER_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TRIPLEDGER", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),
		BaseURL:            strings.TrimRight(appValues.String("base_url"), "/"),
		AdminEmails:        splitList(appValues.String("admin_emails"), normalize.Email),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		TriggerMode:    strings.ToLower(strings.TrimSpace(appValues.String("trigger_mode"))),
		SweepHourUTC:   appValues.Int("sweep_hour_utc"),
		SweepMinuteUTC: appValues.Int("sweep_minute_utc"),

		IdentityTokenURL:     appValues.String("identity_token_url"),
		IdentityClientID:     appValues.String("identity_client_id"),
		IdentityClientSecret: appValues.String("identity_client_secret"),
		IdentityScopes:       splitList(appValues.String("identity_scopes"), strings.TrimSpace),
		IdentityProfileURL:   appValues.String("identity_profile_url"),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogAccount: appValues.String("audit_log_account"),
		AuditLogAdmin:   appValues.String("audit_log_admin"),
	}

	return coreCfg, appCfg, nil
}

func splitList(s string, clean func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := clean(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation. Returning an
// error aborts startup before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	switch appCfg.TriggerMode {
	case triggers.ModeChangeStream, triggers.ModeInline, triggers.ModeOff:
	default:
		return fmt.Errorf("trigger_mode must be %q, %q or %q, got %q",
			triggers.ModeChangeStream, triggers.ModeInline, triggers.ModeOff, appCfg.TriggerMode)
	}

	if appCfg.SweepHourUTC < 0 || appCfg.SweepHourUTC > 23 || appCfg.SweepMinuteUTC < 0 || appCfg.SweepMinuteUTC > 59 {
		return fmt.Errorf("sweep time %02d:%02d UTC is not a valid time of day", appCfg.SweepHourUTC, appCfg.SweepMinuteUTC)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.SessionKey == devSessionKey {
		return fmt.Errorf("session_key must be set in production")
	}
	if len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 bytes")
	}

	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}
	if appCfg.GoogleClientID == "" {
		logger.Warn("Google sign-in is not configured; /auth/google will report it as unavailable")
	}
	if appCfg.IdentityProfileURL != "" && !strings.Contains(appCfg.IdentityProfileURL, "{id}") {
		return fmt.Errorf("identity_profile_url must contain {id}")
	}
	return nil
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework settings (ports, TLS, logging, CORS); everything specific to
// TripLedger lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string
	BaseURL            string // e.g., "https://tripledger.app"; OAuth callbacks are built from it

	// AdminEmails get an admin session at login and are promoted or
	// provisioned as admins at startup.
	AdminEmails []string

	// Redis is optional. When RedisAddr is set, scheduled jobs take a Redis
	// lease so only one replica runs each job.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TriggerMode selects how mutations reach the notification dispatcher:
	// "changestream" (replica set), "inline" (standalone) or "off".
	TriggerMode string

	// Account sweeper schedule (UTC).
	SweepHourUTC   int
	SweepMinuteUTC int

	// Identity directory used by the admin photo resync. Left blank, the
	// resync endpoint reports that it is not configured.
	IdentityTokenURL     string
	IdentityClientID     string
	IdentityClientSecret string
	IdentityScopes       []string
	IdentityProfileURL   string // must contain "{id}"

	// Audit logging: "all", "db", "log" or "off" per category.
	AuditLogAuth    string
	AuditLogAccount string
	AuditLogAdmin   string
}

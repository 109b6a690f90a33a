package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Addr     string // listen address, e.g. ":8080"
	TLS      bool
	CertFile string
	KeyFile  string

	// Database: "sqlite" (default) or "postgres".
	DBDriver    string
	DBPath      string // SQLite database path
	DatabaseURL string // Postgres connection URL (required when DBDriver == "postgres")

	// Auth mode: "introspect" (default), "jwt", or "oidc".
	AuthMode string
	// Introspect settings: the auth service endpoint that validates bearer
	// tokens and returns the account identity.
	AuthUserInfoURL string
	// JWT settings (required when AuthMode == "jwt").
	JWTSigningKey string // HMAC secret string or path to PEM public key file
	JWTIssuer     string // expected JWT issuer (optional)
	JWTAudience   string // expected JWT audience (optional)
	// OIDC settings (required when AuthMode == "oidc").
	OIDCIssuer     string // OIDC provider discovery URL
	OIDCClientID   string // OAuth2 client ID (ID token audience)
	OIDCEmailClaim string // claim key for email (default: "email")

	// Profile resolution.
	ProfileCacheSize int           // LRU entries for resolved profiles
	ProfileCacheTTL  time.Duration // resolved profile TTL
	PolicyPath       string        // tenant-access policy YAML (empty = built-in defaults)

	// Session cookie checked when no Authorization header is present.
	SessionCookie string

	// Backup (SQLite only).
	BackupDir       string        // directory for VACUUM INTO snapshots (empty = disabled)
	BackupInterval  time.Duration // snapshot cadence
	BackupRetention int           // snapshots kept before pruning

	// Seeding.
	Seed     bool // create the built-in roles on startup
	SeedDemo bool // also create demo entities

	// Tracing (OTLP gRPC endpoint, empty = disabled).
	OTLPEndpoint string

	// Logging.
	LogFormat string // "json" (default) or "text"
	AuditLogs bool   // enable audit logging (default true)
}

func Parse() *Config {
	c := &Config{}
	flag.StringVar(&c.Addr, "addr", ":8080", "listen address")
	flag.BoolVar(&c.TLS, "tls", false, "enable TLS")
	flag.StringVar(&c.CertFile, "cert", "", "TLS certificate file")
	flag.StringVar(&c.KeyFile, "key", "", "TLS key file")

	// Database flags.
	flag.StringVar(&c.DBDriver, "db-driver", "sqlite", "database driver: sqlite or postgres")
	flag.StringVar(&c.DBPath, "db", "locomotion.db", "SQLite database path")
	flag.StringVar(&c.DatabaseURL, "database-url", "", "Postgres connection URL (required for postgres driver)")

	// Auth flags.
	flag.StringVar(&c.AuthMode, "auth-mode", "introspect", "authentication mode: introspect, jwt, or oidc")
	flag.StringVar(&c.AuthUserInfoURL, "auth-userinfo-url", "", "auth service userinfo endpoint (required for introspect mode)")
	flag.StringVar(&c.JWTSigningKey, "jwt-signing-key", "", "HMAC secret or path to PEM public key for JWT verification")
	flag.StringVar(&c.JWTIssuer, "jwt-issuer", "", "expected JWT issuer claim (optional)")
	flag.StringVar(&c.JWTAudience, "jwt-audience", "", "expected JWT audience claim (optional)")
	flag.StringVar(&c.OIDCIssuer, "oidc-issuer", "", "OIDC provider discovery URL (required for oidc mode)")
	flag.StringVar(&c.OIDCClientID, "oidc-client-id", "", "OIDC OAuth2 client ID")
	flag.StringVar(&c.OIDCEmailClaim, "oidc-email-claim", "email", "OIDC claim key for email")

	// Profile flags.
	flag.IntVar(&c.ProfileCacheSize, "profile-cache-size", 1024, "LRU cache size for resolved profiles")
	flag.DurationVar(&c.ProfileCacheTTL, "profile-cache-ttl", time.Minute, "resolved profile TTL")
	flag.StringVar(&c.PolicyPath, "policy", "", "path to tenant-access policy YAML (empty = built-in defaults)")

	flag.StringVar(&c.SessionCookie, "session-cookie", "locomotion_session", "cookie name checked for a session token")

	// Backup flags.
	flag.StringVar(&c.BackupDir, "backup-dir", "", "directory for database backups (empty = disabled)")
	flag.DurationVar(&c.BackupInterval, "backup-interval", time.Hour, "database backup cadence")
	flag.IntVar(&c.BackupRetention, "backup-retention", 24, "number of backup snapshots kept")

	// Seed flags.
	flag.BoolVar(&c.Seed, "seed", true, "create built-in roles on startup")
	flag.BoolVar(&c.SeedDemo, "seed-demo", false, "also create demo entities on startup")

	flag.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for traces (empty = disabled)")

	// Logging flags.
	flag.StringVar(&c.LogFormat, "log-format", "json", "log format: json or text")
	flag.BoolVar(&c.AuditLogs, "audit-logs", true, "enable structured audit logging")

	flag.Parse()

	// Allow env overrides.
	if v := os.Getenv("LOCOMOTION_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("LOCOMOTION_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("LOCOMOTION_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOCOMOTION_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LOCOMOTION_AUTH_MODE"); v != "" {
		c.AuthMode = v
	}
	if v := os.Getenv("LOCOMOTION_AUTH_USERINFO_URL"); v != "" {
		c.AuthUserInfoURL = v
	}
	if v := os.Getenv("LOCOMOTION_JWT_SIGNING_KEY"); v != "" {
		c.JWTSigningKey = v
	}
	if v := os.Getenv("LOCOMOTION_JWT_ISSUER"); v != "" {
		c.JWTIssuer = v
	}
	if v := os.Getenv("LOCOMOTION_JWT_AUDIENCE"); v != "" {
		c.JWTAudience = v
	}
	if v := os.Getenv("LOCOMOTION_OIDC_ISSUER"); v != "" {
		c.OIDCIssuer = v
	}
	if v := os.Getenv("LOCOMOTION_OIDC_CLIENT_ID"); v != "" {
		c.OIDCClientID = v
	}
	if v := os.Getenv("LOCOMOTION_OIDC_EMAIL_CLAIM"); v != "" {
		c.OIDCEmailClaim = v
	}
	if v := os.Getenv("LOCOMOTION_PROFILE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProfileCacheSize = n
		}
	}
	if v := os.Getenv("LOCOMOTION_PROFILE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ProfileCacheTTL = d
		}
	}
	if v := os.Getenv("LOCOMOTION_POLICY"); v != "" {
		c.PolicyPath = v
	}
	if v := os.Getenv("LOCOMOTION_SESSION_COOKIE"); v != "" {
		c.SessionCookie = v
	}
	if v := os.Getenv("LOCOMOTION_BACKUP_DIR"); v != "" {
		c.BackupDir = v
	}
	if v := os.Getenv("LOCOMOTION_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BackupInterval = d
		}
	}
	if v := os.Getenv("LOCOMOTION_BACKUP_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BackupRetention = n
		}
	}
	if v := os.Getenv("LOCOMOTION_SEED"); v == "false" {
		c.Seed = false
	}
	if v := os.Getenv("LOCOMOTION_SEED_DEMO"); v == "true" {
		c.SeedDemo = true
	}
	if v := os.Getenv("LOCOMOTION_OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("LOCOMOTION_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("LOCOMOTION_AUDIT_LOGS"); v == "false" {
		c.AuditLogs = false
	}

	return c
}

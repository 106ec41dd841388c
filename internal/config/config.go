// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/identity/domain"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development" or "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DocstoreDriver selects the document database: postgres or sqlite.
	DocstoreDriver string `mapstructure:"DOCSTORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; used when DocstoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the database file; used when DocstoreDriver is sqlite.
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; derived from the private key when empty.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// IDTokenTTL is the ID token lifetime (e.g. "1h").
	IDTokenTTL string `mapstructure:"ID_TOKEN_TTL"`
	// ResetTokenTTL is the password reset token lifetime (e.g. "30m").
	ResetTokenTTL string `mapstructure:"RESET_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SignInRatePerMinute and SignInBurst bound password sign-in attempts per email.
	SignInRatePerMinute int `mapstructure:"SIGNIN_RATE_PER_MINUTE"`
	SignInBurst         int `mapstructure:"SIGNIN_BURST"`

	ProfilesCollection        string `mapstructure:"PROFILES_COLLECTION"`
	AcademiasCollection       string `mapstructure:"ACADEMIAS_COLLECTION"`
	AcademiasLegacyCollection string `mapstructure:"ACADEMIAS_LEGACY_COLLECTION"`

	// Federated sign-in. A provider is enabled when its client id is set.
	GoogleClientID        string `mapstructure:"OIDC_GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"OIDC_GOOGLE_CLIENT_SECRET"`
	AppleClientID         string `mapstructure:"OIDC_APPLE_CLIENT_ID"`
	AppleClientSecret     string `mapstructure:"OIDC_APPLE_CLIENT_SECRET"`
	FacebookClientID      string `mapstructure:"OIDC_FACEBOOK_CLIENT_ID"`
	FacebookClientSecret  string `mapstructure:"OIDC_FACEBOOK_CLIENT_SECRET"`
	MicrosoftClientID     string `mapstructure:"OIDC_MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `mapstructure:"OIDC_MICROSOFT_CLIENT_SECRET"`
	// MicrosoftTenants is a comma-separated list of allowed tenant ids; empty allows any tenant.
	MicrosoftTenants string `mapstructure:"OIDC_MICROSOFT_TENANTS"`
	// OIDCRedirectURL is the callback of the auth-code flow; shared by all providers.
	OIDCRedirectURL string `mapstructure:"OIDC_REDIRECT_URL"`

	// AuditKafkaBrokers is a comma-separated broker list. When set, audit events are also
	// published to AuditKafkaTopic.
	AuditKafkaBrokers string `mapstructure:"AUDIT_KAFKA_BROKERS"`
	AuditKafkaTopic   string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// Telemetry (optional). Traces and metrics are exported over OTLP gRPC when the endpoint is set.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// OIDCClient is the OAuth client registered with one federated provider.
type OIDCClient struct {
	ClientID     string
	ClientSecret string
	// Tenants is set for Microsoft only.
	Tenants []string
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DOCSTORE_DRIVER", db.DriverSQLite)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "academia.db")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "academia-identity")
	v.SetDefault("JWT_AUDIENCE", "academia-app")
	v.SetDefault("ID_TOKEN_TTL", "1h")
	v.SetDefault("RESET_TOKEN_TTL", "30m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SIGNIN_RATE_PER_MINUTE", 5)
	v.SetDefault("SIGNIN_BURST", 5)
	v.SetDefault("PROFILES_COLLECTION", "users")
	v.SetDefault("ACADEMIAS_COLLECTION", "academias")
	v.SetDefault("ACADEMIAS_LEGACY_COLLECTION", "academies")
	for _, key := range []string{
		"OIDC_GOOGLE_CLIENT_ID", "OIDC_GOOGLE_CLIENT_SECRET",
		"OIDC_APPLE_CLIENT_ID", "OIDC_APPLE_CLIENT_SECRET",
		"OIDC_FACEBOOK_CLIENT_ID", "OIDC_FACEBOOK_CLIENT_SECRET",
		"OIDC_MICROSOFT_CLIENT_ID", "OIDC_MICROSOFT_CLIENT_SECRET", "OIDC_MICROSOFT_TENANTS",
		"OIDC_REDIRECT_URL", "OTEL_EXPORTER_OTLP_ENDPOINT", "AUDIT_KAFKA_BROKERS",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("AUDIT_KAFKA_TOPIC", "academia.audit")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "academia-identity")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch cfg.DocstoreDriver {
	case db.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when DOCSTORE_DRIVER=postgres")
		}
	case db.DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("config: SQLITE_PATH must be set when DOCSTORE_DRIVER=sqlite")
		}
	default:
		return nil, errors.New("config: DOCSTORE_DRIVER must be postgres or sqlite")
	}

	if cfg.Env == "production" && cfg.JWTPrivateKey == "" {
		return nil, errors.New("config: JWT_PRIVATE_KEY must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.SignInRatePerMinute <= 0 || cfg.SignInBurst <= 0 {
		return nil, errors.New("config: SIGNIN_RATE_PER_MINUTE and SIGNIN_BURST must be positive")
	}

	return &cfg, nil
}

// DSN returns the connection string of the configured driver.
func (c *Config) DSN() string {
	if c.DocstoreDriver == db.DriverPostgres {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

// IDTTL parses IDTokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) IDTTL() time.Duration {
	return parseTTL(c.IDTokenTTL, time.Hour)
}

// ResetTTL parses ResetTokenTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	return parseTTL(c.ResetTokenTTL, 30*time.Minute)
}

// SignInInterval is the time between sign-in attempts the limiter refills.
func (c *Config) SignInInterval() time.Duration {
	if c.SignInRatePerMinute <= 0 {
		return 12 * time.Second
	}
	return time.Minute / time.Duration(c.SignInRatePerMinute)
}

// OIDCClients returns the providers with a client id configured.
func (c *Config) OIDCClients() map[domain.FederatedProvider]OIDCClient {
	all := map[domain.FederatedProvider]OIDCClient{
		domain.FederatedGoogle:    {ClientID: c.GoogleClientID, ClientSecret: c.GoogleClientSecret},
		domain.FederatedApple:     {ClientID: c.AppleClientID, ClientSecret: c.AppleClientSecret},
		domain.FederatedFacebook:  {ClientID: c.FacebookClientID, ClientSecret: c.FacebookClientSecret},
		domain.FederatedMicrosoft: {ClientID: c.MicrosoftClientID, ClientSecret: c.MicrosoftClientSecret, Tenants: splitList(c.MicrosoftTenants)},
	}
	out := make(map[domain.FederatedProvider]OIDCClient)
	for p, client := range all {
		if client.ClientID != "" {
			out[p] = client
		}
	}
	return out
}

// AuditBrokers splits AuditKafkaBrokers, dropping empty entries.
func (c *Config) AuditBrokers() []string {
	return splitList(c.AuditKafkaBrokers)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseTTL(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

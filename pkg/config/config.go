package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Quotation    QuotationConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKQUOTE_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKQUOTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PACKQUOTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKQUOTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKQUOTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"PACKQUOTE_DB_DSN"`

	LegacyHost     string `envconfig:"PACKQUOTE_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKQUOTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKQUOTE_DB_USER"`
	LegacyPassword string `envconfig:"PACKQUOTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKQUOTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKQUOTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKQUOTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKQUOTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKQUOTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKQUOTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PACKQUOTE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKQUOTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PACKQUOTE_REDIS_ADDR"`
	Password     string        `envconfig:"PACKQUOTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKQUOTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKQUOTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKQUOTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKQUOTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKQUOTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKQUOTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PACKQUOTE_AUTO_MIGRATE" default:"false"`
}

// PricingConfig selects which rate table version is used when callers do not
// name one, and how long resolved tables stay in the cache.
type PricingConfig struct {
	DefaultRateVersion string        `envconfig:"PACKQUOTE_PRICING_DEFAULT_RATE_VERSION" default:"builtin-2024-01"`
	RateCacheTTL       time.Duration `envconfig:"PACKQUOTE_PRICING_RATE_CACHE_TTL" default:"10m"`
	MaxQuantityTiers   int           `envconfig:"PACKQUOTE_PRICING_MAX_TIERS" default:"10"`
}

type QuotationConfig struct {
	TaxPercent     int           `envconfig:"PACKQUOTE_QUOTATION_TAX_PERCENT" default:"10"`
	ValidityPeriod time.Duration `envconfig:"PACKQUOTE_QUOTATION_VALIDITY" default:"720h"`
	NumberAttempts int           `envconfig:"PACKQUOTE_NUMBER_MAX_ATTEMPTS" default:"5"`
}

type RateLimitConfig struct {
	CouponWindow  time.Duration `envconfig:"PACKQUOTE_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponIPLimit int           `envconfig:"PACKQUOTE_RATE_LIMIT_COUPON_IP_LIMIT" default:"30"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"PACKQUOTE_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PACKQUOTE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PACKQUOTE_PUBSUB_DOMAIN_TOPIC" default:"pq-domain-events"`
	NotificationTopic  string `envconfig:"PACKQUOTE_PUBSUB_NOTIFICATION_TOPIC" default:"pq-notification-events"`
	DomainSubscription string `envconfig:"PACKQUOTE_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"PACKQUOTE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"PACKQUOTE_CORS_MAX_AGE" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PACKQUOTE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PACKQUOTE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PACKQUOTE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Mpesa        MpesaConfig
	Payments     PaymentsConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"TRAINERCONNECT_APP_ENV" required:"true"`
	Port         string `envconfig:"TRAINERCONNECT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRAINERCONNECT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRAINERCONNECT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRAINERCONNECT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRAINERCONNECT_DB_DSN"`
	Driver string `envconfig:"TRAINERCONNECT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRAINERCONNECT_DB_HOST"`
	LegacyPort     int    `envconfig:"TRAINERCONNECT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRAINERCONNECT_DB_USER"`
	LegacyPassword string `envconfig:"TRAINERCONNECT_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRAINERCONNECT_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRAINERCONNECT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRAINERCONNECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRAINERCONNECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRAINERCONNECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRAINERCONNECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either TRAINERCONNECT_DB_DSN or host/user/name settings are required")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.LegacyUser, d.LegacyPassword),
		Host:   fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:   d.LegacyName,
	}
	query := dsn.Query()
	query.Set("sslmode", d.LegacySSLMode)
	dsn.RawQuery = query.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"TRAINERCONNECT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRAINERCONNECT_REDIS_ADDR"`
	Password     string        `envconfig:"TRAINERCONNECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRAINERCONNECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRAINERCONNECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRAINERCONNECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRAINERCONNECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRAINERCONNECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRAINERCONNECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRAINERCONNECT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRAINERCONNECT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRAINERCONNECT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// MpesaConfig carries provider adapter settings. BaseURLs is the ordered
// failover list; the first reachable endpoint is cached for the process lifetime.
type MpesaConfig struct {
	BaseURLs       []string      `envconfig:"TRAINERCONNECT_MPESA_BASE_URLS" default:"https://api.safaricom.co.ke"`
	AccessToken    string        `envconfig:"TRAINERCONNECT_MPESA_ACCESS_TOKEN" required:"true"`
	ShortCode      string        `envconfig:"TRAINERCONNECT_MPESA_SHORTCODE" required:"true"`
	InitiatorName  string        `envconfig:"TRAINERCONNECT_MPESA_INITIATOR_NAME" default:"trainerconnect"`
	CallbackURL    string        `envconfig:"TRAINERCONNECT_MPESA_CALLBACK_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"TRAINERCONNECT_MPESA_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     uint64        `envconfig:"TRAINERCONNECT_MPESA_MAX_RETRIES" default:"3"`
}

type PaymentsConfig struct {
	MinCollectionCents   int64 `envconfig:"TRAINERCONNECT_PAYMENTS_MIN_COLLECTION_CENTS" default:"500"`
	MaxCollectionCents   int64 `envconfig:"TRAINERCONNECT_PAYMENTS_MAX_COLLECTION_CENTS" default:"15000000"`
	MinDisbursementCents int64 `envconfig:"TRAINERCONNECT_PAYMENTS_MIN_DISBURSEMENT_CENTS" default:"1000"`
}

type ReconcileConfig struct {
	Interval    time.Duration `envconfig:"TRAINERCONNECT_RECONCILE_INTERVAL" default:"5s"`
	MaxAttempts int           `envconfig:"TRAINERCONNECT_RECONCILE_MAX_ATTEMPTS" default:"12"`
	StuckAfter  time.Duration `envconfig:"TRAINERCONNECT_RECONCILE_STUCK_AFTER" default:"2m"`
	LockTTL     time.Duration `envconfig:"TRAINERCONNECT_RECONCILE_LOCK_TTL" default:"1m"`
	CallbackTTL time.Duration `envconfig:"TRAINERCONNECT_RECONCILE_CALLBACK_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRAINERCONNECT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRAINERCONNECT_AUTO_MIGRATE" default:"false"`
}

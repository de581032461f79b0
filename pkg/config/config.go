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

	EnvDBDSN  = "FARMSTAND_DB_DSN"
	EnvDBHost = "FARMSTAND_DB_HOST"
	EnvDBUser = "FARMSTAND_DB_USER"
	EnvDBName = "FARMSTAND_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Site          SiteConfig
	DB            DBConfig
	Redis         RedisConfig
	Stripe        StripeConfig
	Square        SquareConfig
	Sweeper       SweeperConfig
	ConfirmOnRead ConfirmOnReadConfig
	Webhooks      WebhookConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"FARMSTAND_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMSTAND_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMSTAND_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMSTAND_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// SiteConfig carries the public base URL used to build checkout success,
// cancel, and webhook notification URLs.
type SiteConfig struct {
	BaseURL string `envconfig:"FARMSTAND_SITE_BASE_URL" required:"true"`
}

// CheckoutSuccessURL returns the buyer-facing landing page after payment.
func (s SiteConfig) CheckoutSuccessURL(orderID string) string {
	return fmt.Sprintf("%s/checkout/success?orderId=%s", strings.TrimRight(s.BaseURL, "/"), url.QueryEscape(orderID))
}

// CheckoutCancelURL returns the buyer-facing page when checkout is abandoned.
func (s SiteConfig) CheckoutCancelURL(orderID string) string {
	return fmt.Sprintf("%s/checkout/cancel?orderId=%s", strings.TrimRight(s.BaseURL, "/"), url.QueryEscape(orderID))
}

// WebhookNotificationURL returns the provider callback URL, which Square
// includes in its signature base string.
func (s SiteConfig) WebhookNotificationURL(provider string) string {
	return fmt.Sprintf("%s/api/v1/webhooks/%s", strings.TrimRight(s.BaseURL, "/"), provider)
}

type DBConfig struct {
	DSN    string `envconfig:"FARMSTAND_DB_DSN"`
	Driver string `envconfig:"FARMSTAND_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMSTAND_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMSTAND_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMSTAND_DB_USER"`
	LegacyPassword string `envconfig:"FARMSTAND_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMSTAND_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMSTAND_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMSTAND_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMSTAND_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMSTAND_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMSTAND_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMSTAND_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMSTAND_REDIS_ADDR"`
	Password     string        `envconfig:"FARMSTAND_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMSTAND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMSTAND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMSTAND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMSTAND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMSTAND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMSTAND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"FARMSTAND_STRIPE_API_KEY"`
	Secret string `envconfig:"FARMSTAND_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"FARMSTAND_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	WebhookSecret string `envconfig:"FARMSTAND_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"FARMSTAND_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SweeperConfig struct {
	BearerSecret string        `envconfig:"FARMSTAND_SWEEPER_BEARER_SECRET"`
	Interval     time.Duration `envconfig:"FARMSTAND_SWEEPER_INTERVAL" default:"1m"`
	BatchSize    int           `envconfig:"FARMSTAND_SWEEPER_BATCH_SIZE" default:"100"`
}

// ConfirmOnReadConfig tunes the status-poll direct confirmation. The retry
// cadence exists for environments where provider webhooks cannot reach this
// system; production deployments with reachable webhooks can disable it.
type ConfirmOnReadConfig struct {
	Enabled      bool          `envconfig:"FARMSTAND_CONFIRM_ON_READ" default:"true"`
	MaxRetries   int           `envconfig:"FARMSTAND_CONFIRM_ON_READ_RETRIES" default:"2"`
	InitialDelay time.Duration `envconfig:"FARMSTAND_CONFIRM_ON_READ_DELAY" default:"500ms"`
}

type WebhookConfig struct {
	QueueSize int `envconfig:"FARMSTAND_WEBHOOK_QUEUE_SIZE" default:"256"`
	Workers   int `envconfig:"FARMSTAND_WEBHOOK_WORKERS" default:"4"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FARMSTAND_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FARMSTAND_AUTO_MIGRATE" default:"false"`
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

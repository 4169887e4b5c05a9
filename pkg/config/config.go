package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Governor     GovernorConfig
	Invites      InvitesConfig
	Audit        AuditConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHATGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"CHATGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHATGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHATGATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHATGATE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHATGATE_DB_DSN"`
	Driver string `envconfig:"CHATGATE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CHATGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHATGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHATGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHATGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch db.Driver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("database driver must be %q or %q", DBDriverPostgres, DBDriverSQLite)
	}
	if db.DSN == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CHATGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHATGATE_REDIS_ADDR"`
	Password     string        `envconfig:"CHATGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHATGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHATGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHATGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHATGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHATGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHATGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type TelegramConfig struct {
	BotToken    string `envconfig:"CHATGATE_TELEGRAM_BOT_TOKEN" required:"true"`
	APIEndpoint string `envconfig:"CHATGATE_TELEGRAM_API_ENDPOINT"`
	Debug       bool   `envconfig:"CHATGATE_TELEGRAM_DEBUG" default:"false"`
}

type GovernorConfig struct {
	MinDelay       time.Duration `envconfig:"CHATGATE_GOVERNOR_MIN_DELAY" default:"1200ms"`
	RetryMargin    time.Duration `envconfig:"CHATGATE_GOVERNOR_RETRY_MARGIN" default:"500ms"`
	BurstEvery     int           `envconfig:"CHATGATE_GOVERNOR_BURST_EVERY" default:"5"`
	BurstCooldown  time.Duration `envconfig:"CHATGATE_GOVERNOR_BURST_COOLDOWN" default:"5s"`
	QueryMinDelay  time.Duration `envconfig:"CHATGATE_GOVERNOR_QUERY_MIN_DELAY" default:"300ms"`
}

type InvitesConfig struct {
	TTL      time.Duration `envconfig:"CHATGATE_INVITE_TTL" default:"12h"`
	Cooldown time.Duration `envconfig:"CHATGATE_INVITE_COOLDOWN" default:"48h"`
}

type AuditConfig struct {
	Interval     time.Duration `envconfig:"CHATGATE_AUDIT_INTERVAL" default:"1h"`
	ErrorBackoff time.Duration `envconfig:"CHATGATE_AUDIT_ERROR_BACKOFF" default:"5m"`
	Enabled      bool          `envconfig:"CHATGATE_AUDIT_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHATGATE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CHATGATE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CHATGATE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AccessEventsTopic        string `envconfig:"CHATGATE_PUBSUB_ACCESS_EVENTS_TOPIC" default:"cg-access-events"`
	AccessEventsSubscription string `envconfig:"CHATGATE_PUBSUB_ACCESS_EVENTS_SUBSCRIPTION"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHATGATE_AUTO_MIGRATE" default:"false"`
}

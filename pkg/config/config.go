package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the platform reads.
	EnvPrefix = "DHS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Escrow        EscrowConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Escrow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DHS_APP_ENV" required:"true"`
	Port         string `envconfig:"DHS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DHS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DHS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DHS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DHS_DB_DSN"`
	Driver string `envconfig:"DHS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DHS_DB_HOST"`
	Port     int    `envconfig:"DHS_DB_PORT" default:"5432"`
	User     string `envconfig:"DHS_DB_USER"`
	Password string `envconfig:"DHS_DB_PASSWORD"`
	Name     string `envconfig:"DHS_DB_NAME"`
	SSLMode  string `envconfig:"DHS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DHS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DHS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DHS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DHS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrateDev bool   `envconfig:"DHS_DB_AUTO_MIGRATE_DEV" default:"false"`
	MigrationsDir  string `envconfig:"DHS_DB_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("config: either DHS_DB_DSN or DHS_DB_HOST/USER/NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"DHS_REDIS_URL"`
	Address      string        `envconfig:"DHS_REDIS_ADDR"`
	Password     string        `envconfig:"DHS_REDIS_PASSWORD"`
	DB           int           `envconfig:"DHS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DHS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DHS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DHS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DHS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DHS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret        string        `envconfig:"DHS_JWT_SECRET" required:"true"`
	Issuer        string        `envconfig:"DHS_JWT_ISSUER" default:"dhs-backend"`
	AccessTTL     time.Duration `envconfig:"DHS_JWT_ACCESS_TTL" default:"15m"`
	ClockSkewSlop time.Duration `envconfig:"DHS_JWT_CLOCK_SKEW" default:"30s"`
}

type PasswordConfig struct {
	ArgonMemoryKiB    uint32 `envconfig:"DHS_PASSWORD_ARGON_MEMORY_KIB" default:"65536"`
	ArgonTime         uint32 `envconfig:"DHS_PASSWORD_ARGON_TIME" default:"3"`
	ArgonParallelism  uint8  `envconfig:"DHS_PASSWORD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLength   uint32 `envconfig:"DHS_PASSWORD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLength    uint32 `envconfig:"DHS_PASSWORD_ARGON_KEY_LEN" default:"32"`
	MinPasswordLength int    `envconfig:"DHS_PASSWORD_MIN_LENGTH" default:"10"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"DHS_AUTH_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"DHS_AUTH_RL_LOGIN_IP_LIMIT" default:"10"`
	LoginAccountLimit  int           `envconfig:"DHS_AUTH_RL_LOGIN_ACCOUNT_LIMIT" default:"5"`
	SignupWindow       time.Duration `envconfig:"DHS_AUTH_RL_SIGNUP_WINDOW" default:"1m"`
	SignupIPLimit      int           `envconfig:"DHS_AUTH_RL_SIGNUP_IP_LIMIT" default:"5"`
	SignupAccountLimit int           `envconfig:"DHS_AUTH_RL_SIGNUP_ACCOUNT_LIMIT" default:"3"`
}

// EscrowConfig carries the token denomination and the identities of the two
// privileged platform accounts. FixedStake is a whole-unit count and must be
// scaled by PrecisionFactor before it is moved or compared.
type EscrowConfig struct {
	EngineAccount   string `envconfig:"DHS_ESCROW_ENGINE_ACCOUNT" default:"dhsservice"`
	EscrowAccount   string `envconfig:"DHS_ESCROW_ESCROW_ACCOUNT" default:"dhsescrow"`
	TokenSymbol     string `envconfig:"DHS_ESCROW_TOKEN_SYMBOL" default:"DHS"`
	TokenPrecision  int    `envconfig:"DHS_ESCROW_TOKEN_PRECISION" default:"4"`
	FixedStakeWhole int64  `envconfig:"DHS_ESCROW_FIXED_STAKE" default:"30"`
}

func (e EscrowConfig) validate() error {
	if e.EngineAccount == "" || e.EscrowAccount == "" {
		return fmt.Errorf("config: engine and escrow accounts are required")
	}
	if e.EngineAccount == e.EscrowAccount {
		return fmt.Errorf("config: engine and escrow accounts must differ")
	}
	if e.TokenPrecision < 0 || e.TokenPrecision > 8 {
		return fmt.Errorf("config: token precision %d out of range", e.TokenPrecision)
	}
	if e.FixedStakeWhole <= 0 {
		return fmt.Errorf("config: fixed stake must be positive")
	}
	return nil
}

// PrecisionFactor returns the minor-units-per-whole-unit multiplier.
func (e EscrowConfig) PrecisionFactor() int64 {
	factor := int64(1)
	for i := 0; i < e.TokenPrecision; i++ {
		factor *= 10
	}
	return factor
}

// StakeAmount returns the fixed stake in minor units.
func (e EscrowConfig) StakeAmount() int64 {
	return e.FixedStakeWhole * e.PrecisionFactor()
}

type PubSubConfig struct {
	ProjectID       string `envconfig:"DHS_PUBSUB_PROJECT_ID"`
	HandshakesTopic string `envconfig:"DHS_PUBSUB_HANDSHAKES_TOPIC" default:"dhs-handshake-events"`
	DisputesTopic   string `envconfig:"DHS_PUBSUB_DISPUTES_TOPIC" default:"dhs-dispute-events"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"DHS_OUTBOX_BATCH_SIZE" default:"100"`
	PollInterval time.Duration `envconfig:"DHS_OUTBOX_POLL_INTERVAL" default:"2s"`
	MaxAttempts  int           `envconfig:"DHS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge time.Duration `envconfig:"DHS_OUTBOX_RETENTION_AGE" default:"720h"`
}

type CronConfig struct {
	Interval     time.Duration `envconfig:"DHS_CRON_INTERVAL" default:"1m"`
	LockTTL      time.Duration `envconfig:"DHS_CRON_LOCK_TTL" default:"5m"`
	MetricsPort  string        `envconfig:"DHS_CRON_METRICS_PORT" default:"9090"`
	SweepEnabled bool          `envconfig:"DHS_CRON_DEADLINE_SWEEP_ENABLED" default:"true"`
}

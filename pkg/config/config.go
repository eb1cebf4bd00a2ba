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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Square       SquareConfig
	Refunds      RefundsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PF_APP_ENV" required:"true"`
	Port         string `envconfig:"PF_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PF_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"PF_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"PF_DB_DSN"`
	Driver string `envconfig:"PF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PF_DB_HOST"`
	LegacyPort     int    `envconfig:"PF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PF_DB_USER"`
	LegacyPassword string `envconfig:"PF_DB_PASSWORD"`
	LegacyName     string `envconfig:"PF_DB_NAME"`
	LegacySSLMode  string `envconfig:"PF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PF_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"PF_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the connection targets the local sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"PF_REDIS_URL"`
	Address      string        `envconfig:"PF_REDIS_ADDR"`
	Password     string        `envconfig:"PF_REDIS_PASSWORD"`
	DB           int           `envconfig:"PF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PF_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"PF_REDIS_KEY_PREFIX" default:"refunds"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PF_JWT_EXPIRATION_MINUTES" default:"60"`
	// Audience is checked only when set.
	Audience string        `envconfig:"PF_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"PF_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite     bool `envconfig:"PF_USE_SQLITE" default:"false"`
	AutoMigrate   bool `envconfig:"PF_AUTO_MIGRATE" default:"false"`
	SquareRefunds bool `envconfig:"PF_FEATURE_SQUARE_REFUNDS" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PF_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RefundsTopic string `envconfig:"PF_PUBSUB_REFUNDS_TOPIC" default:"pf-refund-events"`
	// RestockTopic receives refund_item_restocked events; empty keeps them
	// on RefundsTopic.
	RestockTopic string `envconfig:"PF_PUBSUB_RESTOCK_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"PF_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"PF_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type RefundsConfig struct {
	ReferenceTemplate string `envconfig:"PF_REFUNDS_REFERENCE_TEMPLATE" default:"Refund #{{seq (printf \"refund:%s\" (date \"0601\" .DateCreated)) 4}}"`
	DefaultNote       string `envconfig:"PF_REFUNDS_DEFAULT_NOTE"`
	Permission        string `envconfig:"PF_REFUNDS_PERMISSION" default:"commerce-refundPayment"`
}

// RateLimitConfig throttles refund saves per client IP and per user.
type RateLimitConfig struct {
	SaveWindow     time.Duration `envconfig:"PF_RATE_LIMIT_SAVE_WINDOW" default:"1m"`
	SaveIPLimit    int           `envconfig:"PF_RATE_LIMIT_SAVE_IP" default:"60"`
	SaveActorLimit int           `envconfig:"PF_RATE_LIMIT_SAVE_USER" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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

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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	PubSub       PubSubConfig
	Dispatch     DispatchConfig
	Realtime     RealtimeConfig
	Requests     RequestsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"PARTSFINDA_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTSFINDA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PARTSFINDA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARTSFINDA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTSFINDA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSFINDA_DB_DSN"`
	Driver string `envconfig:"PARTSFINDA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSFINDA_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSFINDA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSFINDA_DB_USER"`
	LegacyPassword string `envconfig:"PARTSFINDA_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSFINDA_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSFINDA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSFINDA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSFINDA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSFINDA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSFINDA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSFINDA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTSFINDA_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSFINDA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSFINDA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSFINDA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSFINDA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSFINDA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSFINDA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSFINDA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PARTSFINDA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PARTSFINDA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PARTSFINDA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PARTSFINDA_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"PARTSFINDA_PUBSUB_NOTIFICATION_TOPIC" default:"pf-seller-notifications"`
	NotificationSubscription string `envconfig:"PARTSFINDA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	ProjectID                string `envconfig:"PARTSFINDA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON          string `envconfig:"PARTSFINDA_GCP_CREDENTIALS_JSON"`
}

// DispatchConfig tunes the queue dispatch worker.
type DispatchConfig struct {
	BatchSize        int           `envconfig:"PARTSFINDA_DISPATCH_BATCH_SIZE" default:"25"`
	PollInterval     time.Duration `envconfig:"PARTSFINDA_DISPATCH_POLL_INTERVAL" default:"2s"`
	MaxAttempts      int           `envconfig:"PARTSFINDA_DISPATCH_MAX_ATTEMPTS" default:"5"`
	NotifierTimeout  time.Duration `envconfig:"PARTSFINDA_DISPATCH_NOTIFIER_TIMEOUT" default:"10s"`
	Concurrency      int           `envconfig:"PARTSFINDA_DISPATCH_CONCURRENCY" default:"8"`
	StaleClaimAfter  time.Duration `envconfig:"PARTSFINDA_DISPATCH_STALE_CLAIM_AFTER" default:"5m"`
	BackoffBase      time.Duration `envconfig:"PARTSFINDA_DISPATCH_BACKOFF_BASE" default:"30s"`
	BackoffMax       time.Duration `envconfig:"PARTSFINDA_DISPATCH_BACKOFF_MAX" default:"15m"`
	TierStaggerDelay time.Duration `envconfig:"PARTSFINDA_DISPATCH_TIER_STAGGER" default:"10m"`
	DrainTimeout     time.Duration `envconfig:"PARTSFINDA_DISPATCH_DRAIN_TIMEOUT" default:"30s"`
}

// RealtimeConfig tunes the websocket transport.
type RealtimeConfig struct {
	WriteTimeout     time.Duration `envconfig:"PARTSFINDA_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PongTimeout      time.Duration `envconfig:"PARTSFINDA_REALTIME_PONG_TIMEOUT" default:"60s"`
	PingInterval     time.Duration `envconfig:"PARTSFINDA_REALTIME_PING_INTERVAL" default:"50s"`
	SendBuffer       int           `envconfig:"PARTSFINDA_REALTIME_SEND_BUFFER" default:"64"`
	SeenCacheSize    int           `envconfig:"PARTSFINDA_REALTIME_SEEN_CACHE_SIZE" default:"512"`
	TypingTTL        time.Duration `envconfig:"PARTSFINDA_REALTIME_TYPING_TTL" default:"5s"`
	MaxMessageBytes  int64         `envconfig:"PARTSFINDA_REALTIME_MAX_MESSAGE_BYTES" default:"8192"`
	ReadLimitPerConn int           `envconfig:"PARTSFINDA_REALTIME_READ_LIMIT" default:"0"`
}

// RequestsConfig covers part-request lifecycle defaults.
type RequestsConfig struct {
	DefaultTTL      time.Duration `envconfig:"PARTSFINDA_REQUEST_DEFAULT_TTL" default:"168h"`
	QuoteWindow     time.Duration `envconfig:"PARTSFINDA_REQUEST_QUOTE_WINDOW" default:"72h"`
	QuoteIPLimit    int           `envconfig:"PARTSFINDA_QUOTE_RATE_LIMIT_IP" default:"30"`
	QuoteRateWindow time.Duration `envconfig:"PARTSFINDA_QUOTE_RATE_LIMIT_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PARTSFINDA_CRON_INTERVAL" default:"5m"`
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

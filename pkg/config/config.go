package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SERATA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SERATA_DB_DSN"
	EnvDBHost = "SERATA_DB_HOST"
	EnvDBUser = "SERATA_DB_USER"
	EnvDBName = "SERATA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Phone         PhoneConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"SERATA_APP_ENV" required:"true"`
	Port         string `envconfig:"SERATA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SERATA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SERATA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SERATA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SERATA_DB_DSN"`
	Driver string `envconfig:"SERATA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SERATA_DB_HOST"`
	LegacyPort     int    `envconfig:"SERATA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SERATA_DB_USER"`
	LegacyPassword string `envconfig:"SERATA_DB_PASSWORD"`
	LegacyName     string `envconfig:"SERATA_DB_NAME"`
	LegacySSLMode  string `envconfig:"SERATA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SERATA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SERATA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SERATA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SERATA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SERATA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SERATA_REDIS_ADDR"`
	Password     string        `envconfig:"SERATA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SERATA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SERATA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SERATA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SERATA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SERATA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SERATA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SERATA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SERATA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SERATA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SERATA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SERATA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SERATA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SERATA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SERATA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SERATA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"SERATA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"SERATA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"SERATA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	ScanWindow      time.Duration `envconfig:"SERATA_AUTH_RATE_LIMIT_SCAN_WINDOW" default:"1s"`
	ScanDeviceLimit int           `envconfig:"SERATA_AUTH_RATE_LIMIT_SCAN_DEVICE_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SERATA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SERATA_AUTO_MIGRATE" default:"false"`
}

// PhoneConfig drives phone normalization and matching.
type PhoneConfig struct {
	DefaultCountryCode string `envconfig:"SERATA_PHONE_DEFAULT_COUNTRY_CODE" default:"39"`
	MinMatchDigits     int    `envconfig:"SERATA_PHONE_MIN_MATCH_DIGITS" default:"6"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SERATA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SERATA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SERATA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SERATA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"SERATA_PUBSUB_NOTIFICATION_TOPIC" default:"serata-notification-events"`
	NotificationSubscription string `envconfig:"SERATA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	CheckinTopic             string `envconfig:"SERATA_PUBSUB_CHECKIN_TOPIC" default:"serata-checkin-events"`
	CheckinSubscription      string `envconfig:"SERATA_PUBSUB_CHECKIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SERATA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SERATA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SERATA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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

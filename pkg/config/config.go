package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Orders        OrdersConfig
	Recaptcha     RecaptchaConfig
	Assistant     AssistantConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Media         MediaConfig
	PubSub        PubSubConfig
	Mongo         MongoConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string   `envconfig:"CAMPUSMART_APP_ENV" required:"true"`
	Port         string   `envconfig:"CAMPUSMART_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CAMPUSMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CAMPUSMART_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"CAMPUSMART_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"CAMPUSMART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUSMART_DB_DSN"`
	Driver string `envconfig:"CAMPUSMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAMPUSMART_DB_HOST"`
	LegacyPort     int    `envconfig:"CAMPUSMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAMPUSMART_DB_USER"`
	LegacyPassword string `envconfig:"CAMPUSMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAMPUSMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAMPUSMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAMPUSMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUSMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUSMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUSMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CAMPUSMART_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUSMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAMPUSMART_REDIS_ADDR"`
	Password     string        `envconfig:"CAMPUSMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUSMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUSMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUSMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUSMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUSMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUSMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CAMPUSMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CAMPUSMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CAMPUSMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CAMPUSMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAMPUSMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAMPUSMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAMPUSMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAMPUSMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAMPUSMART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CAMPUSMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	DeliverWindow      time.Duration `envconfig:"CAMPUSMART_RATE_LIMIT_DELIVER_WINDOW" default:"10m"`
	DeliverLimit       int           `envconfig:"CAMPUSMART_RATE_LIMIT_DELIVER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite     bool `envconfig:"CAMPUSMART_USE_SQLITE" default:"false"`
	AutoMigrate   bool `envconfig:"CAMPUSMART_AUTO_MIGRATE" default:"false"`
	CaptchaBypass bool `envconfig:"CAMPUSMART_CAPTCHA_BYPASS" default:"false"`
}

type OrdersConfig struct {
	OTPLength int           `envconfig:"CAMPUSMART_ORDERS_OTP_LENGTH" default:"6"`
	OTPTTL    time.Duration `envconfig:"CAMPUSMART_ORDERS_OTP_TTL" default:"24h"`
}

type RecaptchaConfig struct {
	Secret    string  `envconfig:"CAMPUSMART_RECAPTCHA_SECRET"`
	VerifyURL string  `envconfig:"CAMPUSMART_RECAPTCHA_VERIFY_URL" default:"https://www.google.com/recaptcha/api/siteverify"`
	MinScore  float64 `envconfig:"CAMPUSMART_RECAPTCHA_MIN_SCORE" default:"0.5"`
}

type AssistantConfig struct {
	APIKey       string        `envconfig:"CAMPUSMART_ASSISTANT_API_KEY"`
	BaseURL      string        `envconfig:"CAMPUSMART_ASSISTANT_BASE_URL" default:"https://api.openai.com/v1"`
	Model        string        `envconfig:"CAMPUSMART_ASSISTANT_MODEL" default:"gpt-4o-mini"`
	SessionTTL   time.Duration `envconfig:"CAMPUSMART_ASSISTANT_SESSION_TTL" default:"2h"`
	MaxTurns     int           `envconfig:"CAMPUSMART_ASSISTANT_MAX_TURNS" default:"20"`
	SystemPrompt string        `envconfig:"CAMPUSMART_ASSISTANT_SYSTEM_PROMPT" default:"You are the CampusMart helper. Answer questions about buying and selling on campus."`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CAMPUSMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CAMPUSMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CAMPUSMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"CAMPUSMART_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"CAMPUSMART_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type MediaConfig struct {
	MaxUploadMB   int    `envconfig:"CAMPUSMART_MAX_UPLOAD_MB" default:"10"`
	DefaultFolder string `envconfig:"CAMPUSMART_MEDIA_DEFAULT_FOLDER" default:"items"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"CAMPUSMART_PUBSUB_ORDERS_TOPIC" default:"campusmart-order-events"`
	MarketTopic string `envconfig:"CAMPUSMART_PUBSUB_MARKET_TOPIC" default:"campusmart-market-events"`

	NotificationsOrdersSubscription string `envconfig:"CAMPUSMART_PUBSUB_NOTIFICATIONS_ORDERS_SUBSCRIPTION" default:"campusmart-notifications-orders"`
	NotificationsMarketSubscription string `envconfig:"CAMPUSMART_PUBSUB_NOTIFICATIONS_MARKET_SUBSCRIPTION" default:"campusmart-notifications-market"`
	AnalyticsSubscription           string `envconfig:"CAMPUSMART_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"campusmart-analytics-orders"`

	// ProcessedTTL is how long the notifications worker remembers handled event ids.
	ProcessedTTL time.Duration `envconfig:"CAMPUSMART_NOTIFICATIONS_PROCESSED_TTL" default:"168h"`
}

type MongoConfig struct {
	URI        string        `envconfig:"CAMPUSMART_MONGO_URI"`
	Database   string        `envconfig:"CAMPUSMART_MONGO_DATABASE" default:"campusmart"`
	Collection string        `envconfig:"CAMPUSMART_MONGO_HISTORY_COLLECTION" default:"order_status_history"`
	Timeout    time.Duration `envconfig:"CAMPUSMART_MONGO_TIMEOUT" default:"5s"`
}

// Enabled reports whether an order history store is configured.
func (m MongoConfig) Enabled() bool {
	return strings.TrimSpace(m.URI) != ""
}

type BigQueryConfig struct {
	Dataset                string        `envconfig:"CAMPUSMART_BIGQUERY_DATASET"`
	MarketplaceEventsTable string        `envconfig:"CAMPUSMART_BIGQUERY_MARKETPLACE_EVENTS_TABLE" default:"marketplace_events"`
	InsertMaxAttempts      int           `envconfig:"CAMPUSMART_BIGQUERY_INSERT_MAX_ATTEMPTS" default:"3"`
	CreateMissingTable     bool          `envconfig:"CAMPUSMART_BIGQUERY_CREATE_MISSING_TABLE" default:"false"`
	ProcessedTTL           time.Duration `envconfig:"CAMPUSMART_ANALYTICS_PROCESSED_TTL" default:"168h"`
}

// Enabled reports whether marketplace analytics is backed by a dataset.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CAMPUSMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CAMPUSMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CAMPUSMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"CAMPUSMART_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxBackoff     time.Duration `envconfig:"CAMPUSMART_OUTBOX_MAX_BACKOFF" default:"10s"`
	RelayedTTL     time.Duration `envconfig:"CAMPUSMART_OUTBOX_RELAYED_TTL" default:"168h"`
}

// PollInterval is the idle wait between empty batches.
func (c OutboxConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"CAMPUSMART_CRON_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"CAMPUSMART_CRON_LOCK_TTL" default:"10m"`
	JobTimeout                time.Duration `envconfig:"CAMPUSMART_CRON_JOB_TIMEOUT" default:"5m"`
	OutboxRetentionDays       int           `envconfig:"CAMPUSMART_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"CAMPUSMART_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == DriverSQLite {
		db.DSN = defaultSQLiteDSN
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

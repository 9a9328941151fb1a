package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	PayTabs    PayTabsConfig
	Tabby      TabbyConfig
	Tamara     TamaraConfig
	Notify     NotifyConfig
	Reconciler ReconcilerConfig
	Outbox     OutboxConfig
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
	Env          string `envconfig:"MAZAJ_APP_ENV" required:"true"`
	Port         string `envconfig:"MAZAJ_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"MAZAJ_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"MAZAJ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAZAJ_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"MAZAJ_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MAZAJ_DB_DSN"`
	Driver string `envconfig:"MAZAJ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MAZAJ_DB_HOST"`
	LegacyPort     int    `envconfig:"MAZAJ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MAZAJ_DB_USER"`
	LegacyPassword string `envconfig:"MAZAJ_DB_PASSWORD"`
	LegacyName     string `envconfig:"MAZAJ_DB_NAME"`
	LegacySSLMode  string `envconfig:"MAZAJ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAZAJ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAZAJ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAZAJ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAZAJ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAZAJ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MAZAJ_REDIS_ADDR"`
	Password     string        `envconfig:"MAZAJ_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAZAJ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAZAJ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAZAJ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAZAJ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAZAJ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAZAJ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PayTabsConfig carries the merchant profile and the server key used both
// for checkout requests and callback signature verification.
type PayTabsConfig struct {
	ServerKey string        `envconfig:"PAYTABS_SERVER_KEY" required:"true"`
	ProfileID string        `envconfig:"PAYTABS_PROFILE_ID" required:"true"`
	BaseURL   string        `envconfig:"PAYTABS_BASE_URL" default:"https://secure.paytabs.sa"`
	Timeout   time.Duration `envconfig:"PAYTABS_TIMEOUT" default:"15s"`
	Currency  string        `envconfig:"PAYTABS_CURRENCY" default:"SAR"`
}

type TabbyConfig struct {
	SecretKey    string        `envconfig:"TABBY_SECRET_KEY" required:"true"`
	MerchantCode string        `envconfig:"TABBY_MERCHANT_CODE" required:"true"`
	BaseURL      string        `envconfig:"TABBY_BASE_URL" default:"https://api.tabby.ai"`
	Timeout      time.Duration `envconfig:"TABBY_TIMEOUT" default:"15s"`
}

type TamaraConfig struct {
	APIURL   string        `envconfig:"TAMARA_API_URL" required:"true"`
	APIToken string        `envconfig:"TAMARA_API_TOKEN" required:"true"`
	Timeout  time.Duration `envconfig:"TAMARA_TIMEOUT" default:"15s"`
}

type NotifyConfig struct {
	StaffRecipient  string        `envconfig:"MAZAJ_NOTIFY_STAFF_RECIPIENT" required:"true"`
	FromAddress     string        `envconfig:"MAZAJ_NOTIFY_FROM" default:"orders@mazaj-interiors.sa"`
	SendConcurrency int           `envconfig:"MAZAJ_NOTIFY_SEND_CONCURRENCY" default:"4"`
	EmailServiceURL string        `envconfig:"MAZAJ_NOTIFY_EMAIL_URL"`
	EmailAuthToken  string        `envconfig:"MAZAJ_NOTIFY_EMAIL_TOKEN"`
	EmailTimeout    time.Duration `envconfig:"MAZAJ_NOTIFY_EMAIL_TIMEOUT" default:"10s"`
}

type ReconcilerConfig struct {
	Interval       time.Duration `envconfig:"MAZAJ_RECONCILER_INTERVAL" default:"5m"`
	PendingCutoff  time.Duration `envconfig:"MAZAJ_RECONCILER_PENDING_CUTOFF" default:"30m"`
	CaptureRetries uint64        `envconfig:"MAZAJ_RECONCILER_CAPTURE_RETRIES" default:"3"`
	LockTTL        time.Duration `envconfig:"MAZAJ_RECONCILER_LOCK_TTL" default:"10m"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MAZAJ_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"MAZAJ_OUTBOX_POLL_INTERVAL" default:"2s"`
	MaxAttempts    int           `envconfig:"MAZAJ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"MAZAJ_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
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

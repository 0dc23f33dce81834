package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "STORE"

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Tax       TaxConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
}

// Load reads the whole configuration from the environment.
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
	Env       string `envconfig:"STORE_APP_ENV" default:"development"`
	Name      string `envconfig:"STORE_APP_NAME" default:"Material Store API v1.0"`
	Port      string `envconfig:"STORE_APP_PORT" default:"3000"`
	LogLevel  string `envconfig:"STORE_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"STORE_LOG_FORMAT" default:"json"`

	AdminEmail      string        `envconfig:"STORE_ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword   string        `envconfig:"STORE_ADMIN_PASSWORD" default:"admin123"`
	ShutdownTimeout time.Duration `envconfig:"STORE_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN         string `envconfig:"STORE_DB_DSN"`
	AutoMigrate bool   `envconfig:"STORE_DB_AUTO_MIGRATE" default:"false"`

	Host     string `envconfig:"STORE_DB_HOST"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	User     string `envconfig:"STORE_DB_USER"`
	Password string `envconfig:"STORE_DB_PASSWORD"`
	Name     string `envconfig:"STORE_DB_NAME"`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORE_DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"STORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	SlowThreshold   time.Duration `envconfig:"STORE_DB_SLOW_THRESHOLD" default:"1s"`
}

type RedisConfig struct {
	Addr       string        `envconfig:"STORE_REDIS_ADDR"`
	Password   string        `envconfig:"STORE_REDIS_PASSWORD"`
	DB         int           `envconfig:"STORE_REDIS_DB" default:"0"`
	SessionTTL time.Duration `envconfig:"STORE_REDIS_SESSION_TTL" default:"5m"`
	DedupTTL   time.Duration `envconfig:"STORE_REDIS_DEDUP_TTL" default:"48h"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type JWTConfig struct {
	Secret          string `envconfig:"STORE_JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	Issuer          string `envconfig:"STORE_JWT_ISSUER" default:"go-material-store"`
	ExpirationHours int    `envconfig:"STORE_JWT_EXPIRATION_HOURS" default:"24"`
}

type GatewayConfig struct {
	BaseURL     string        `envconfig:"STORE_GATEWAY_BASE_URL" default:"https://api.sandbox.midtrans.com"`
	ServerKey   string        `envconfig:"STORE_GATEWAY_SERVER_KEY"`
	Sandbox     bool          `envconfig:"STORE_GATEWAY_SANDBOX" default:"true"`
	DefaultBank string        `envconfig:"STORE_GATEWAY_DEFAULT_BANK" default:"bca"`
	Timeout     time.Duration `envconfig:"STORE_GATEWAY_TIMEOUT" default:"15s"`
}

type TaxConfig struct {
	Rate     string `envconfig:"STORE_TAX_RATE" default:"0.11"`
	Rounding string `envconfig:"STORE_TAX_ROUNDING" default:"half_up"`
}

type KafkaConfig struct {
	Brokers           []string `envconfig:"STORE_KAFKA_BROKERS"`
	NotificationTopic string   `envconfig:"STORE_KAFKA_NOTIFICATION_TOPIC" default:"order.notifications"`
}

// Enabled reports whether at least one broker was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ReconcileConfig struct {
	StaleAfter time.Duration `envconfig:"STORE_RECONCILE_STALE_AFTER" default:"30m"`
	BatchSize  int           `envconfig:"STORE_RECONCILE_BATCH_SIZE" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Host == "" || db.User == "" || db.Name == "" {
		return fmt.Errorf("either STORE_DB_DSN or STORE_DB_HOST, STORE_DB_USER and STORE_DB_NAME are required")
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	q := u.Query()
	if db.SSLMode != "" {
		q.Set("sslmode", db.SSLMode)
	}
	q.Set("TimeZone", "Asia/Jakarta")
	u.RawQuery = q.Encode()

	db.DSN = u.String()
	return nil
}

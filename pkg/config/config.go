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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Gateway       GatewayConfig
	Order         OrderConfig
	Sweep         SweepConfig
	Fanout        FanoutConfig
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
	Env          string `envconfig:"DINEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"DINEHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DINEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DINEHUB_LOG_WARN_STACK" default:"false"`
	ClientURL    string `envconfig:"DINEHUB_CLIENT_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DINEHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DINEHUB_DB_DSN"`
	Driver string `envconfig:"DINEHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DINEHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"DINEHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DINEHUB_DB_USER"`
	LegacyPassword string `envconfig:"DINEHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"DINEHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"DINEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DINEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DINEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DINEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DINEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DINEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DINEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"DINEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"DINEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DINEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DINEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DINEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DINEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DINEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DINEHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DINEHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DINEHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type AuthRateLimitConfig struct {
	CallbackWindow  time.Duration `envconfig:"DINEHUB_RATE_LIMIT_CALLBACK_WINDOW" default:"1m"`
	CallbackIPLimit int           `envconfig:"DINEHUB_RATE_LIMIT_CALLBACK_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DINEHUB_AUTO_MIGRATE" default:"false"`
}

// GatewayConfig carries the redirect gateway credentials and wire defaults.
type GatewayConfig struct {
	MerchantCode string        `envconfig:"DINEHUB_GATEWAY_MERCHANT_CODE" required:"true"`
	HashSecret   string        `envconfig:"DINEHUB_GATEWAY_HASH_SECRET" required:"true"`
	PayURL       string        `envconfig:"DINEHUB_GATEWAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL    string        `envconfig:"DINEHUB_GATEWAY_RETURN_URL" required:"true"`
	Currency     string        `envconfig:"DINEHUB_GATEWAY_CURRENCY" default:"VND"`
	Locale       string        `envconfig:"DINEHUB_GATEWAY_LOCALE" default:"vn"`
	AttemptTTL   time.Duration `envconfig:"DINEHUB_GATEWAY_ATTEMPT_TTL" default:"30m"`
}

type OrderConfig struct {
	TaxRatePercent int64 `envconfig:"DINEHUB_ORDER_TAX_RATE_PERCENT" default:"10"`
}

type SweepConfig struct {
	Interval  time.Duration `envconfig:"DINEHUB_SWEEP_INTERVAL" default:"1m"`
	BatchSize int           `envconfig:"DINEHUB_SWEEP_BATCH_SIZE" default:"100"`
}

type FanoutConfig struct {
	BatchSize      int `envconfig:"DINEHUB_FANOUT_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DINEHUB_FANOUT_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DINEHUB_FANOUT_MAX_ATTEMPTS" default:"10"`
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

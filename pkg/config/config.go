package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"
	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Store         StoreConfig
	Notifications NotificationsConfig
	Throttle      ThrottleConfig
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
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// StoreConfig carries the site-wide commerce settings. These were a
// database singleton in an earlier incarnation; they are now plain process
// configuration read once at startup.
type StoreConfig struct {
	SiteName            string  `envconfig:"STOREFRONT_SITE_NAME" default:"Priyanka Superbazaar"`
	Currency            string  `envconfig:"STOREFRONT_CURRENCY" default:"INR"`
	TaxRate             float64 `envconfig:"STOREFRONT_TAX_RATE" default:"0.18"`
	MinOrderAmount      float64 `envconfig:"STOREFRONT_MIN_ORDER_AMOUNT" default:"0"`
	DefaultShippingCost float64 `envconfig:"STOREFRONT_DEFAULT_SHIPPING_COST" default:"50"`
	EnableCOD           bool    `envconfig:"STOREFRONT_ENABLE_COD" default:"true"`
	OrderNumberPrefix   string  `envconfig:"STOREFRONT_ORDER_NUMBER_PREFIX" default:"ORD"`
}

// TaxRateDecimal returns the tax rate as a decimal fraction.
func (s StoreConfig) TaxRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(s.TaxRate)
}

// MinOrderAmountDecimal returns the free-shipping / minimum-order threshold.
func (s StoreConfig) MinOrderAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(s.MinOrderAmount)
}

// DefaultShippingCostDecimal returns the flat shipping cost applied when no
// shipping method is selected and the order is below the site threshold.
func (s StoreConfig) DefaultShippingCostDecimal() decimal.Decimal {
	return decimal.NewFromFloat(s.DefaultShippingCost)
}

type NotificationsConfig struct {
	DispatchInterval time.Duration `envconfig:"STOREFRONT_NOTIFY_DISPATCH_INTERVAL" default:"5s"`
	DispatchBatch    int           `envconfig:"STOREFRONT_NOTIFY_DISPATCH_BATCH" default:"20"`
	MaxAttempts      int           `envconfig:"STOREFRONT_NOTIFY_MAX_ATTEMPTS" default:"5"`
}

type ThrottleConfig struct {
	CheckoutWindow        time.Duration `envconfig:"STOREFRONT_THROTTLE_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit       int           `envconfig:"STOREFRONT_THROTTLE_CHECKOUT_IP_LIMIT" default:"10"`
	CheckoutIdentityLimit int           `envconfig:"STOREFRONT_THROTTLE_CHECKOUT_IDENTITY_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
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

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
	Store        StoreConfig
	DB           DBConfig
	Redis        RedisConfig
	Lookup       LookupConfig
	OCR          OCRConfig
	Staging      StagingConfig
	Seed         SeedConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if !c.Redis.Configured() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvStoreDriver, EnvRedisURL, EnvRedisAddr)
		}
	case StoreDriverPostgres:
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	case StoreDriverSQLite:
		if c.DB.DSN == "" {
			c.DB.DSN = DefaultSQLiteDSN
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStoreDriver, c.Store.Driver)
	}
	if c.PubSub.Enabled && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s requires %s", EnvPubSubEnabled, EnvGCPProjectID)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"CESTA_APP_ENV" default:"dev"`
	Port         string `envconfig:"CESTA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CESTA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CESTA_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CESTA_LOG_FORMAT"`

	// CORSOrigins is a comma separated allow list; empty allows every origin.
	CORSOrigins string `envconfig:"CESTA_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits CORSOrigins, defaulting to every origin.
// ResolvedLogFormat picks the logger output: an explicit CESTA_LOG_FORMAT wins, prod logs
// json and dev logs to the console. Other environments return "" so the logger
// falls back to LOG_FORMAT.
func (a AppConfig) ResolvedLogFormat() string {
	if format := strings.ToLower(strings.TrimSpace(a.LogFormat)); format != "" {
		return format
	}
	switch {
	case a.IsProd():
		return "json"
	case a.IsDev():
		return "console"
	}
	return ""
}

func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type StoreConfig struct {
	Driver string `envconfig:"CESTA_STORE_DRIVER" default:"memory"`
	Key    string `envconfig:"CESTA_STORE_KEY" default:"products"`
}

type DBConfig struct {
	DSN string `envconfig:"CESTA_DB_DSN"`

	LegacyHost     string `envconfig:"CESTA_DB_HOST"`
	LegacyPort     int    `envconfig:"CESTA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CESTA_DB_USER"`
	LegacyPassword string `envconfig:"CESTA_DB_PASSWORD"`
	LegacyName     string `envconfig:"CESTA_DB_NAME"`
	LegacySSLMode  string `envconfig:"CESTA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CESTA_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"CESTA_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"CESTA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CESTA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CESTA_REDIS_URL"`
	Address      string        `envconfig:"CESTA_REDIS_ADDR"`
	Password     string        `envconfig:"CESTA_REDIS_PASSWORD"`
	DB           int           `envconfig:"CESTA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CESTA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CESTA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CESTA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CESTA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CESTA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a redis endpoint was provided.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type LookupConfig struct {
	BaseURL   string        `envconfig:"CESTA_LOOKUP_BASE_URL" default:"https://world.openfoodfacts.org"`
	Timeout   time.Duration `envconfig:"CESTA_LOOKUP_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"CESTA_LOOKUP_USER_AGENT" default:"cestaprecios/1.0"`
	CacheTTL  time.Duration `envconfig:"CESTA_LOOKUP_CACHE_TTL" default:"24h"`

	// RateLimit caps barcode lookups per client IP within RateWindow. Needs redis; 0 disables.
	RateLimit  int           `envconfig:"CESTA_LOOKUP_RATE_LIMIT" default:"60"`
	RateWindow time.Duration `envconfig:"CESTA_LOOKUP_RATE_WINDOW" default:"1m"`
}

type OCRConfig struct {
	Endpoint string        `envconfig:"CESTA_OCR_ENDPOINT"`
	APIKey   string        `envconfig:"CESTA_OCR_API_KEY"`
	Timeout  time.Duration `envconfig:"CESTA_OCR_TIMEOUT" default:"30s"`
	Language string        `envconfig:"CESTA_OCR_LANGUAGE" default:"spa"`
	MaxMB    int           `envconfig:"CESTA_OCR_MAX_UPLOAD_MB" default:"10"`
}

// MaxBytes converts MaxMB into a byte limit for upload bodies.
func (o OCRConfig) MaxBytes() int64 {
	if o.MaxMB <= 0 {
		return 10 << 20
	}
	return int64(o.MaxMB) << 20
}

type StagingConfig struct {
	SessionTTL    time.Duration `envconfig:"CESTA_STAGING_SESSION_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"CESTA_STAGING_SWEEP_INTERVAL" default:"1m"`
}

type SeedConfig struct {
	HistorySamples  int           `envconfig:"CESTA_SEED_HISTORY_SAMPLES" default:"5"`
	HistoryInterval time.Duration `envconfig:"CESTA_SEED_HISTORY_INTERVAL" default:"168h"`
	Variance        float64       `envconfig:"CESTA_SEED_VARIANCE" default:"0.1"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CESTA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	Enabled      bool   `envconfig:"CESTA_PUBSUB_ENABLED" default:"false"`
	CatalogTopic string `envconfig:"CESTA_PUBSUB_CATALOG_TOPIC" default:"cesta-catalog-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CESTA_AUTO_MIGRATE" default:"false"`
	LookupCache bool `envconfig:"CESTA_FEATURE_LOOKUP_CACHE" default:"true"`
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

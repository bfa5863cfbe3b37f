package config

// EnvPrefix namespaces every variable; the struct tags carry the full names.
const EnvPrefix = "CESTA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:cestaprecios.db?cache=shared"
)

const (
	EnvAppEnv        = "CESTA_APP_ENV"
	EnvPort          = "CESTA_APP_PORT"
	EnvStoreDriver   = "CESTA_STORE_DRIVER"
	EnvDBDSN         = "CESTA_DB_DSN"
	EnvDBHost        = "CESTA_DB_HOST"
	EnvDBUser        = "CESTA_DB_USER"
	EnvDBName        = "CESTA_DB_NAME"
	EnvRedisURL      = "CESTA_REDIS_URL"
	EnvRedisAddr     = "CESTA_REDIS_ADDR"
	EnvGCPProjectID  = "CESTA_GCP_PROJECT_ID"
	EnvPubSubEnabled = "CESTA_PUBSUB_ENABLED"
	EnvOCREndpoint   = "CESTA_OCR_ENDPOINT"
	EnvSessionTTL    = "CESTA_STAGING_SESSION_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

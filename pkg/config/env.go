package config

const (
	EnvPrefix = "CAMPUSMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "CAMPUSMART_APP_ENV"
	EnvPort       = "CAMPUSMART_APP_PORT"
	EnvLogLevel   = "CAMPUSMART_LOG_LEVEL"
	EnvDBDSN      = "CAMPUSMART_DB_DSN"
	EnvDBHost     = "CAMPUSMART_DB_HOST"
	EnvDBUser     = "CAMPUSMART_DB_USER"
	EnvDBName     = "CAMPUSMART_DB_NAME"
	EnvRedisURL   = "CAMPUSMART_REDIS_URL"
	EnvJWTSecret  = "CAMPUSMART_JWT_SECRET"
	EnvJWTIssuer  = "CAMPUSMART_JWT_ISSUER"
	EnvJWTExpMins = "CAMPUSMART_JWT_EXPIRATION_MINUTES"

	EnvRefreshTokenTTLMinutes = "CAMPUSMART_REFRESH_TOKEN_TTL_MINUTES"
	EnvOrdersOTPTTL           = "CAMPUSMART_ORDERS_OTP_TTL"
	EnvMongoURI               = "CAMPUSMART_MONGO_URI"
	EnvBigQueryDataset        = "CAMPUSMART_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	defaultSQLiteDSN = "file:campusmart.db?_foreign_keys=on"
)

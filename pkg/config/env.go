package config

const (
	EnvPrefix = "PF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DefaultSQLiteDSN = "file:refunds.db?cache=shared"

	EnvAppEnv    = "PF_APP_ENV"
	EnvPort      = "PF_APP_PORT"
	EnvDBDSN     = "PF_DB_DSN"
	EnvDBHost    = "PF_DB_HOST"
	EnvDBUser    = "PF_DB_USER"
	EnvDBName    = "PF_DB_NAME"
	EnvUseSQLite = "PF_USE_SQLITE"

	EnvRedisURL      = "PF_REDIS_URL"
	EnvJWTSecret     = "PF_JWT_SECRET"
	EnvJWTIssuer     = "PF_JWT_ISSUER"
	EnvRefundsTopic  = "PF_PUBSUB_REFUNDS_TOPIC"
	EnvReferenceTmpl = "PF_REFUNDS_REFERENCE_TEMPLATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

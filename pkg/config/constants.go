package config

const (
	EnvPrefix = "SETTLEMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv             = "SETTLEMENT_APP_ENV"
	EnvPort               = "SETTLEMENT_APP_PORT"
	EnvDBDSN              = "SETTLEMENT_DB_DSN"
	EnvDBDriver           = "SETTLEMENT_DB_DRIVER"
	EnvDBHost             = "SETTLEMENT_DB_HOST"
	EnvDBUser             = "SETTLEMENT_DB_USER"
	EnvDBName             = "SETTLEMENT_DB_NAME"
	EnvDBPassword         = "SETTLEMENT_DB_PASSWORD"
	EnvRedisURL           = "SETTLEMENT_REDIS_URL"
	EnvJWTSecret          = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer          = "SETTLEMENT_JWT_ISSUER"
	EnvGatewaySecretKey   = "SETTLEMENT_GATEWAY_SECRET_KEY"
	EnvGatewayCallbackURL = "SETTLEMENT_GATEWAY_CALLBACK_URL"
	EnvAutoCompleteAfter  = "SETTLEMENT_AUTO_COMPLETE_AFTER"
	EnvCronInterval       = "SETTLEMENT_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	EnvPrefix = "CHATGATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvDBDSN = "CHATGATE_DB_DSN"
)

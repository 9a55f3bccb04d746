package config

// EnvPrefix namespaces all environment variables consumed by Load.
const EnvPrefix = "PARTSFINDA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PARTSFINDA_DB_DSN"
	EnvDBHost = "PARTSFINDA_DB_HOST"
	EnvDBUser = "PARTSFINDA_DB_USER"
	EnvDBName = "PARTSFINDA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

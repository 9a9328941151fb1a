package config

// EnvPrefix is intentionally empty: every variable declares its full name in
// its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "MAZAJ_DB_DSN"
	EnvDBHost = "MAZAJ_DB_HOST"
	EnvDBUser = "MAZAJ_DB_USER"
	EnvDBName = "MAZAJ_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

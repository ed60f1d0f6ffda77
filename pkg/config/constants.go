package config

const (
	// EnvPrefix is the envconfig prefix shared by every service binary.
	EnvPrefix = "dinehub"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "DINEHUB_APP_ENV"
	EnvPort   = "DINEHUB_APP_PORT"

	EnvDBDSN  = "DINEHUB_DB_DSN"
	EnvDBHost = "DINEHUB_DB_HOST"
	EnvDBUser = "DINEHUB_DB_USER"
	EnvDBName = "DINEHUB_DB_NAME"

	EnvRedisURL = "DINEHUB_REDIS_URL"

	EnvJWTSecret = "DINEHUB_JWT_SECRET"
	EnvJWTIssuer = "DINEHUB_JWT_ISSUER"

	EnvGatewayMerchantCode = "DINEHUB_GATEWAY_MERCHANT_CODE"
	EnvGatewayHashSecret   = "DINEHUB_GATEWAY_HASH_SECRET"
	EnvGatewayReturnURL    = "DINEHUB_GATEWAY_RETURN_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

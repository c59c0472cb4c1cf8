package config

// EnvPrefix is empty because every field carries its fully qualified name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PACKQUOTE_APP_ENV"
	EnvPort     = "PACKQUOTE_APP_PORT"
	EnvLogLevel = "PACKQUOTE_LOG_LEVEL"

	EnvDBDSN  = "PACKQUOTE_DB_DSN"
	EnvDBHost = "PACKQUOTE_DB_HOST"
	EnvDBPort = "PACKQUOTE_DB_PORT"
	EnvDBUser = "PACKQUOTE_DB_USER"
	EnvDBPass = "PACKQUOTE_DB_PASSWORD"
	EnvDBName = "PACKQUOTE_DB_NAME"

	EnvRedisURL = "PACKQUOTE_REDIS_URL"

	EnvPricingDefaultRateVersion = "PACKQUOTE_PRICING_DEFAULT_RATE_VERSION"
	EnvQuotationTaxPercent       = "PACKQUOTE_QUOTATION_TAX_PERCENT"
	EnvNumberMaxAttempts         = "PACKQUOTE_NUMBER_MAX_ATTEMPTS"

	EnvGCPProjectID     = "PACKQUOTE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "PACKQUOTE_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

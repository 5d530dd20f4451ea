// Package constants provides centralized definitions of constants used throughout the application
package constants

// Provider credentials
const (
	// EnvCloudStackAPIURL is the CloudStack API endpoint, e.g. https://cloud.example.com/client/api
	EnvCloudStackAPIURL = "CLOUDSTACK_API_URL"
	// EnvCloudStackAPIKey is the CloudStack API key
	EnvCloudStackAPIKey = "CLOUDSTACK_API_KEY"
	// EnvCloudStackSecretKey is the secret used to sign CloudStack requests
	EnvCloudStackSecretKey = "CLOUDSTACK_SECRET_KEY"
	// EnvDigitalOceanToken is the DigitalOcean personal access token
	EnvDigitalOceanToken = "DIGITALOCEAN_TOKEN"
	// EnvAWSRegion is the region used for Route53 calls
	EnvAWSRegion = "AWS_REGION"
)

// Job polling
const (
	EnvPollMaxDuration = "CLOUDJOB_POLL_MAX_DURATION"
	EnvPollPeriod      = "CLOUDJOB_POLL_PERIOD"
	EnvPollMaxPeriod   = "CLOUDJOB_POLL_MAX_PERIOD"
	EnvPollMultiplier  = "CLOUDJOB_POLL_MULTIPLIER"
	EnvPollMaxAttempts = "CLOUDJOB_POLL_MAX_ATTEMPTS"
)

// Job ledger database
const (
	// EnvDBDriver selects "postgres" or "sqlite"
	EnvDBDriver   = "CLOUDJOB_DB_DRIVER"
	EnvDBHost     = "DB_HOST"
	EnvDBPort     = "DB_PORT"
	EnvDBUser     = "DB_USER"
	EnvDBPassword = "DB_PASSWORD"
	EnvDBName     = "DB_NAME"
	EnvDBSSLMode  = "DB_SSL_MODE"
	// EnvSQLitePath is the database file used with the sqlite driver
	EnvSQLitePath = "CLOUDJOB_SQLITE_PATH"
	// EnvLedgerRetention is how long finished jobs stay in the ledger, 0 keeps them forever
	EnvLedgerRetention = "CLOUDJOB_LEDGER_RETENTION"
	// EnvPurgeInterval is how often the server purges expired jobs
	EnvPurgeInterval = "CLOUDJOB_PURGE_INTERVAL"
)

// Server and logging
const (
	// EnvServerAddress is the address the CLI uses to reach the API server
	EnvServerAddress = "CLOUDJOB_SERVER_ADDRESS"
	// EnvListenPort is the port the API server listens on
	EnvListenPort = "CLOUDJOB_PORT"
	EnvLogLevel   = "LOG_LEVEL"
)

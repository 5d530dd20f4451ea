// Package config assembles runtime configuration from the environment
package config

import (
	"fmt"
	"net/url"
	"time"

	envconfig "github.com/celestiaorg/cloudjob/config"
	"github.com/celestiaorg/cloudjob/internal/constants"
	"github.com/celestiaorg/cloudjob/internal/job"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// CloudStackConfig represents the credentials for a CloudStack endpoint
type CloudStackConfig struct {
	APIURL    string
	APIKey    string
	SecretKey string
}

// Validate validates the CloudStack configuration
func (c *CloudStackConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required")
	}
	return nil
}

// DigitalOceanConfig represents the DigitalOcean credentials
type DigitalOceanConfig struct {
	Token string
	// BaseURL overrides the API endpoint, mainly for tests
	BaseURL string
}

// Validate validates the DigitalOcean configuration
func (c *DigitalOceanConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("API token is required")
	}
	return nil
}

// AWSConfig holds what Route53 needs beyond the default credential chain
type AWSConfig struct {
	Region string
}

// DBConfig represents the job ledger database settings
type DBConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
	// Retention is how long finished jobs are kept. Zero disables purging.
	Retention     time.Duration
	PurgeInterval time.Duration
}

// Validate validates the database configuration
func (c *DBConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("invalid database port %d", c.Port)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.Retention < 0 {
		return fmt.Errorf("ledger retention must not be negative")
	}
	if c.Retention > 0 && c.PurgeInterval <= 0 {
		return fmt.Errorf("purge interval must be positive when retention is set")
	}
	return nil
}

// Config is the full runtime configuration
type Config struct {
	CloudStack   CloudStackConfig
	DigitalOcean DigitalOceanConfig
	AWS          AWSConfig
	Poll         job.PollConfig
	DB           DBConfig
	Port         string
	LogLevel     string
}

// Load reads the configuration from environment variables. Callers load any
// .env file beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		CloudStack: CloudStackConfig{
			APIURL:    envconfig.GetEnv(constants.EnvCloudStackAPIURL, ""),
			APIKey:    envconfig.GetEnv(constants.EnvCloudStackAPIKey, ""),
			SecretKey: envconfig.GetEnv(constants.EnvCloudStackSecretKey, ""),
		},
		DigitalOcean: DigitalOceanConfig{
			Token: envconfig.GetEnv(constants.EnvDigitalOceanToken, ""),
		},
		AWS: AWSConfig{
			Region: envconfig.GetEnv(constants.EnvAWSRegion, "us-east-1"),
		},
		DB: DBConfig{
			Driver:     envconfig.GetEnv(constants.EnvDBDriver, DriverPostgres),
			Host:       envconfig.GetEnv(constants.EnvDBHost, ""),
			User:       envconfig.GetEnv(constants.EnvDBUser, ""),
			Password:   envconfig.GetEnv(constants.EnvDBPassword, ""),
			Name:       envconfig.GetEnv(constants.EnvDBName, ""),
			SSLMode:    envconfig.GetEnv(constants.EnvDBSSLMode, "disable"),
			SQLitePath: envconfig.GetEnv(constants.EnvSQLitePath, "cloudjob.db"),
		},
		Port:     envconfig.GetEnv(constants.EnvListenPort, "8080"),
		LogLevel: envconfig.GetEnv(constants.EnvLogLevel, "info"),
	}

	var err error
	if cfg.DB.Port, err = envconfig.GetEnvInt(constants.EnvDBPort, 0); err != nil {
		return nil, err
	}

	if cfg.DB.Retention, err = envconfig.GetEnvDuration(constants.EnvLedgerRetention, 0); err != nil {
		return nil, err
	}
	if cfg.DB.PurgeInterval, err = envconfig.GetEnvDuration(constants.EnvPurgeInterval, time.Hour); err != nil {
		return nil, err
	}

	poll := job.DefaultPollConfig()
	if poll.MaxDuration, err = envconfig.GetEnvDuration(constants.EnvPollMaxDuration, poll.MaxDuration); err != nil {
		return nil, err
	}
	if poll.Period, err = envconfig.GetEnvDuration(constants.EnvPollPeriod, poll.Period); err != nil {
		return nil, err
	}
	if poll.MaxPeriod, err = envconfig.GetEnvDuration(constants.EnvPollMaxPeriod, poll.MaxPeriod); err != nil {
		return nil, err
	}
	if poll.Multiplier, err = envconfig.GetEnvFloat(constants.EnvPollMultiplier, poll.Multiplier); err != nil {
		return nil, err
	}
	attempts, err := envconfig.GetEnvInt(constants.EnvPollMaxAttempts, 0)
	if err != nil {
		return nil, err
	}
	if attempts < 0 {
		return nil, fmt.Errorf("%s must not be negative", constants.EnvPollMaxAttempts)
	}
	poll.MaxAttempts = uint64(attempts)
	cfg.Poll = poll

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every binary depends on. Provider credentials
// are validated when the provider client is built.
func (c *Config) Validate() error {
	if err := c.Poll.Validate(); err != nil {
		return fmt.Errorf("invalid poll configuration: %w", err)
	}
	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	return nil
}

// Package db provides database connectivity for the job ledger
package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/db/models"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Database configuration constants
const (
	// DefaultHost is the default database host
	DefaultHost = "localhost"
	// DefaultPort is the default database port
	DefaultPort = 5432
	// DefaultUser is the default database user
	DefaultUser = "postgres"
	// DefaultPassword is the default database password
	DefaultPassword = "postgres"
	// DefaultDBName is the default database name
	DefaultDBName = "postgres"
	// DefaultSSLMode is the default postgres sslmode
	DefaultSSLMode = "disable"
	// DefaultSQLitePath is the default sqlite database file
	DefaultSQLitePath = "cloudjob.db"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options represents database connection configuration options
type Options struct {
	Driver     string
	Host       string
	User       string
	Password   string
	DBName     string
	Port       int
	SSLMode    string
	SQLitePath string
	LogLevel   gormlogger.LogLevel
}

// OptionsFromConfig maps the environment database settings to Options
func OptionsFromConfig(cfg config.DBConfig) Options {
	return Options{
		Driver:     cfg.Driver,
		Host:       cfg.Host,
		User:       cfg.User,
		Password:   cfg.Password,
		DBName:     cfg.Name,
		Port:       cfg.Port,
		SSLMode:    cfg.SSLMode,
		SQLitePath: cfg.SQLitePath,
	}
}

// New opens the ledger database and migrates its schema
func New(opts Options) (*gorm.DB, error) {
	opts = setDefaults(opts)

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	// Route GORM's logger through logrus and ignore record not found errors
	newLogger := gormlogger.New(
		logger.Entry().WithField("component", "gorm"),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.TrackedJob{})
}

// IsDuplicateKeyError checks if the given error is a duplicate key error on
// either supported driver
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if errors.Is(postgres.Dialector{}.Translate(err), gorm.ErrDuplicatedKey) {
		return true
	}
	return errors.Is(sqlite.Dialector{}.Translate(err), gorm.ErrDuplicatedKey)
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			opts.Host, opts.User, opts.Password, opts.DBName, opts.Port, opts.SSLMode)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(opts.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func setDefaults(opts Options) Options {
	if opts.Driver == "" {
		opts.Driver = DriverPostgres
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.DBName == "" {
		opts.DBName = DefaultDBName
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SSLMode == "" {
		opts.SSLMode = DefaultSSLMode
	}
	if opts.SQLitePath == "" {
		opts.SQLitePath = DefaultSQLitePath
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}
	return opts
}

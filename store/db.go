package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects and tunes the relational backend.
type Config struct {
	// Driver is one of "sqlite", "mysql", "postgres".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the driver-specific data source name. For sqlite this is the
	// file path; ":memory:" gives an in-process database.
	DSN string `yaml:"dsn" json:"dsn"`

	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DefaultConfig returns a sqlite in-memory configuration, suitable for
// tests and local development.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

// Open opens the database for the configured driver, applies pool settings,
// and migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if (cfg.Driver == "" || cfg.Driver == "sqlite") && strings.Contains(cfg.DSN, ":memory:") {
		// An in-memory sqlite database exists per connection; more than
		// one open connection would see different databases.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&User{},
		&Project{},
		&Mode{},
		&ProjectAccess{},
		&Session{},
		&PersonalizedPrompt{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("database initialized",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return db, nil
}

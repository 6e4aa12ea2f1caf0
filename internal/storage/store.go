package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

type Config struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite, postgres
	DSN    string `yaml:"dsn" json:"dsn"`
	// MaxOpenConns applies to postgres; sqlite is serialized by the driver.
	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime" json:"conn_lifetime"`
}

type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func Open(cfg Config, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(".", "data", "iacguard.db")
		}
		if dsn != ":memory:" && dsn != "file::memory:?cache=shared" {
			if err := utils.EnsureDir(filepath.Dir(dsn)); err != nil {
				return nil, fmt.Errorf("ensure data dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnLifetime)
		}
	}

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	logger.Infof("Database ready (driver: %s)", driverName(cfg.Driver))
	return store, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&models.Project{},
		&models.Scan{},
		&models.Vulnerability{},
		&models.Policy{},
		&models.PolicyConfig{},
		&models.NotificationSettings{},
		&models.NotificationHistory{},
		&models.FileVersion{},
		&models.APIToken{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a single database transaction; the reconciliation
// engine relies on this for its read-then-write over the open set.
func (s *Store) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func driverName(d string) string {
	if d == "" {
		return "sqlite"
	}
	return d
}

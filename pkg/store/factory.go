package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/afipws/internal/logging"
)

// Config selects and configures a driver
type Config struct {
	Driver string       `yaml:"driver"`
	Dir    string       `yaml:"dir"`
	Redis  RedisConfig  `yaml:"redis"`
	Badger BadgerConfig `yaml:"badger"`
	SQL    SQLConfig    `yaml:"sql"`
}

// Drivers lists the accepted driver names
func Drivers() []string {
	return []string{"memory", "filesystem", "redis", "badger", "postgres", "mysql"}
}

// New constructs the configured store. An empty driver selects memory.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	logger.Debug("opening %s object store", driver)

	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "filesystem", "file", "fs":
		return NewFileSystem(cfg.Dir)
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	case "badger":
		bc := cfg.Badger
		if bc.Dir == "" {
			bc.Dir = cfg.Dir
		}
		return NewBadger(bc, logger)
	case "postgres", "postgresql", "mysql", "mariadb":
		return NewSQL(ctx, driver, cfg.SQL)
	default:
		return nil, fmt.Errorf("unsupported store driver %q (supported: %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}
}

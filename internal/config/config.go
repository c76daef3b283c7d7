package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DbTypeSqlite   = "sqlite"
	DbTypePostgres = "pgsql"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type        string        `envconfig:"ESTIMATOR_DB_TYPE" default:"sqlite"`
	Hostname    string        `envconfig:"ESTIMATOR_DB_HOST" default:"localhost"`
	Port        string        `envconfig:"ESTIMATOR_DB_PORT" default:"5432"`
	Name        string        `envconfig:"ESTIMATOR_DB_NAME" default:"cost_estimates.sqlite"`
	User        string        `envconfig:"ESTIMATOR_DB_USER" default:"admin"`
	Password    string        `envconfig:"ESTIMATOR_DB_PASS" default:"adminpass"`
	BusyTimeout time.Duration `envconfig:"ESTIMATOR_DB_BUSY_TIMEOUT" default:"5s"`
}

type svcConfig struct {
	LogLevel         string `envconfig:"ESTIMATOR_LOG_LEVEL" default:"info"`
	LogEstimateError bool   `envconfig:"ESTIMATOR_LOG_ESTIMATE_ERROR" default:"false"`
}

// New reads the configuration from the environment.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type:        DbTypeSqlite,
			Hostname:    "localhost",
			Port:        "5432",
			Name:        "cost_estimates.sqlite",
			User:        "admin",
			Password:    "adminpass",
			BusyTimeout: 5 * time.Second,
		},
		Service: &svcConfig{
			LogLevel: "info",
		},
	}
}

// NewSqlite returns the default configuration pointing at the sqlite file path.
func NewSqlite(path string) *Config {
	cfg := NewDefault()
	cfg.Database.Name = path
	return cfg
}

func (c *Config) Validate() error {
	switch c.Database.Type {
	case DbTypeSqlite, DbTypePostgres:
	default:
		return fmt.Errorf("unsupported database type %q, must be %q or %q", c.Database.Type, DbTypeSqlite, DbTypePostgres)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database busy timeout cannot be negative")
	}
	return nil
}

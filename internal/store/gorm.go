package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/mattn/go-sqlite3"
	"github.com/ngrok/sqlmw"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	sqliteMetricsDriver   = "sqlite3-metrics"
	postgresMetricsDriver = "pgx-metrics"
)

var registerDrivers sync.Once

// registerMetricsDrivers wraps the sqlite and postgres drivers with the
// metric interceptor. database/sql panics on duplicate names, hence the Once.
func registerMetricsDrivers() {
	registerDrivers.Do(func() {
		sql.Register(sqliteMetricsDriver, sqlmw.Driver(&sqlite3.SQLiteDriver{}, &metricInterceptor{}))
		sql.Register(postgresMetricsDriver, sqlmw.Driver(stdlib.GetDefaultDriver(), &metricInterceptor{}))
	})
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dia gorm.Dialector

	registerMetricsDrivers()

	if cfg.Database.Type == config.DbTypePostgres {
		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
			cfg.Database.Hostname,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Port,
		)
		if cfg.Database.Name != "" {
			dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Database.Name)
		}
		dia = postgres.New(postgres.Config{DriverName: postgresMetricsDriver, DSN: dsn})
	} else {
		dia = &sqlite.Dialector{DriverName: sqliteMetricsDriver, DSN: sqliteDSN(cfg.Database.Name, cfg.Database.BusyTimeout)}
	}

	return openDB(dia, cfg)
}

func openDB(dia gorm.Dialector, cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(
		logrus.New(),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			ParameterizedQueries:      true,        // Don't include params in the SQL log
			Colorful:                  false,       // Disable color
		},
	)

	newDB, err := gorm.Open(dia, &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to connect database: %v", err)
		return nil, err
	}

	if err := configureDB(newDB, cfg); err != nil {
		if closer, ok := newDB.ConnPool.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		return nil, err
	}

	return newDB, nil
}

func configureDB(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to configure connections: %v", err)
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if cfg.Database.Type == config.DbTypePostgres {
		var minorVersion string
		if result := db.Raw("SELECT version()").Scan(&minorVersion); result.Error != nil {
			zap.S().Named("gorm").Infoln(result.Error.Error())
			return result.Error
		}

		zap.S().Named("gorm").Infof("PostgreSQL information: '%s'", minorVersion)
	}
	return nil
}

// sqliteDSN asks for BEGIN IMMEDIATE transactions so that a write transaction
// holds the database lock from its first statement, and for WAL journaling so
// readers see the last committed state without blocking the writer. A path
// that already carries a query string keeps it.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

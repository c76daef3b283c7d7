package migrations

import (
	"embed"
	"io/fs"
	"sync"

	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql
var embedded embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// MigrateStore creates the schema if it is absent. Each migration runs in its
// own transaction and existing tables are left untouched.
func MigrateStore(db *gorm.DB, dbType string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(&logger{})

	dialect, folder := "sqlite3", "sql/sqlite"
	if dbType == config.DbTypePostgres {
		dialect, folder = "postgres", "sql/postgres"
	}

	migrationFS, err := fs.Sub(embedded, folder)
	if err != nil {
		return errors.Wrapf(err, "failed to open migration folder %s", folder)
	}
	goose.SetBaseFS(migrationFS)

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "failed to set migration dialect")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := goose.Up(sqlDB, "."); err != nil {
		return errors.Wrap(err, "failed to migrate the store")
	}

	return nil
}

/*
logger implements goose.Logger interface

	type Logger interface {
		Fatalf(format string, v ...interface{})
		Printf(format string, v ...interface{})
	}
*/
type logger struct{}

func (m *logger) Printf(format string, v ...interface{}) {
	zap.S().Named("migrations").Debugf(format, v...)
}
func (m *logger) Fatalf(format string, v ...interface{}) {
	zap.S().Named("migrations").Fatalf(format, v...)
}

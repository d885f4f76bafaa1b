// Package database opens the GORM connection and migrates the schema.
package database

import (
	"github.com/go-faster/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookstore/internal/models"
)

// Open connects to the database selected by driver ("sqlite", "postgres" or
// "mysql"). Errors are translated so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", driver)
	}
	return db, nil
}

// Migrate creates or updates every table, including the join tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.AuthToken{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
	)
	if err != nil {
		return errors.Wrap(err, "auto-migrate")
	}
	return nil
}

// OpenMemory opens a private in-memory SQLite database and migrates it.
// Each call gets its own database, named by name.
func OpenMemory(name string) (*gorm.DB, error) {
	db, err := Open("sqlite", "file:"+name+"?mode=memory&cache=shared", logger.Silent)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/db/dialect"
	"github.com/careloop/careloop/internal/db/dsn"
	"github.com/careloop/careloop/internal/errs"
)

var (
	ErrStartingDBCon          = errors.New("error starting db connection")
	ErrLoadingDsnFromDBConfig = errors.New("error loading dsn from db config")
)

// StartDBConnection opens a DB connection using data from `config.Database`.
func StartDBConnection(ctx context.Context, conf config.Database) (*gorm.DB, error) {
	dsnFromConfig, err := dsn.FromDBConfig(conf)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingDsnFromDBConfig, err)
	}

	db, err := gorm.Open(dialect.NewFrom(dsnFromConfig), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, errs.Wrap(ErrStartingDBCon, err)
	}

	return db.WithContext(ctx), nil
}

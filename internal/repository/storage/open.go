// Package storage selects and opens the configured store driver.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/config"
	"github.com/mamadbah2/cropwatch/internal/repository"
	"github.com/mamadbah2/cropwatch/internal/repository/mongodb"
	"github.com/mamadbah2/cropwatch/internal/repository/postgres"
	"github.com/mamadbah2/cropwatch/internal/repository/sqlite"
)

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store repository.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = openPostgres(ctx, cfg, logger.Named("postgres"))
	case config.DriverMongoDB:
		store, err = openMongo(ctx, cfg, logger.Named("mongodb"))
	case config.DriverSQLite:
		store, err = openSQLite(ctx, cfg, logger.Named("sqlite"))
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}

func openPostgres(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	repo, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openMongo(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoURI, cfg.MongoDBName, logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openSQLite(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	repo, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

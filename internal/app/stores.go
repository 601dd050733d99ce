// Package app builds the stores and award runtime shared by cmd/server and
// cmd/worker.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eventpoints/backend/config"
	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/events"
	"github.com/eventpoints/backend/internal/points"
	"github.com/eventpoints/backend/internal/registrations"
	"github.com/eventpoints/backend/internal/store/memory"
	"github.com/eventpoints/backend/internal/store/sqlite"
	"github.com/eventpoints/backend/internal/users"
	"github.com/eventpoints/backend/pkg/database"
)

// Store kinds reported by Stores.Kind.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// RegistrationStore is what both the HTTP handler and the award task need.
type RegistrationStore interface {
	registrations.Store
	award.Registrations
}

// Stores groups the persistence used by the service.
type Stores struct {
	Kind          string
	Registrations RegistrationStore
	Events        award.Events
	Users         award.Users
	Ledger        points.Ledger

	close func()
}

// Close releases the underlying database handle.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores picks Postgres when DATABASE_URL is set, else SQLite when
// SQLITE_PATH is set, else an empty in-memory store.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.URL != "":
		pool, err := database.NewPostgresPool(ctx, cfg.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Stores{
			Kind:          StorePostgres,
			Registrations: registrations.NewRepository(pool),
			Events:        events.NewRepository(pool),
			Users:         users.NewRepository(pool),
			Ledger:        points.NewRepository(pool),
			close:         pool.Close,
		}, nil

	case cfg.SQLitePath != "":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info("SQLite store opened", zap.String("path", cfg.SQLitePath))
		return &Stores{
			Kind:          StoreSQLite,
			Registrations: db,
			Events:        db,
			Users:         db,
			Ledger:        db,
			close:         func() { _ = db.Close() },
		}, nil

	default:
		logger.Warn("no DATABASE_URL or SQLITE_PATH; using empty in-memory store")
		mem := memory.New()
		return &Stores{
			Kind:          StoreMemory,
			Registrations: mem,
			Events:        mem,
			Users:         mem,
			Ledger:        mem,
		}, nil
	}
}

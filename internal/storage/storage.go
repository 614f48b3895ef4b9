// Package storage opens the ledger store selected by a database URL.
package storage

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
	"github.com/xenking/masterpol/internal/seed"
	"github.com/xenking/masterpol/internal/storage/postgres"
	"github.com/xenking/masterpol/internal/storage/sqlite"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Store bundles the repositories of one backend.
type Store struct {
	Backend   string
	Products  product.Repository
	Orders    order.Ledger
	Partners  partner.Repository
	Employees employee.Repository
	Seeder    seed.Target

	ping  func(ctx context.Context) error
	close func() error
}

// BackendFor returns the backend serving databaseURL. postgres:// and
// postgresql:// URLs select PostgreSQL; anything else is a SQLite DSN, with an
// optional sqlite:// prefix.
func BackendFor(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Open connects to the store and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	switch BackendFor(databaseURL) {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &Store{
			Backend:   BackendPostgres,
			Products:  postgres.NewProductRepository(pool),
			Orders:    postgres.NewOrderRepository(pool),
			Partners:  postgres.NewPartnerRepository(pool),
			Employees: postgres.NewEmployeeRepository(pool),
			Seeder:    postgres.NewSeeder(pool),
			ping:      pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	default:
		db, err := sqlite.Open(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite handle")
		}
		return &Store{
			Backend:   BackendSQLite,
			Products:  sqlite.NewProductRepository(db),
			Orders:    sqlite.NewOrderRepository(db),
			Partners:  sqlite.NewPartnerRepository(db),
			Employees: sqlite.NewEmployeeRepository(db),
			Seeder:    sqlite.NewSeeder(db),
			ping: func(ctx context.Context) error {
				return sqlite.Ping(ctx, db)
			},
			close: sqlDB.Close,
		}, nil
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.close()
}

// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "orggraph_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	return queryListProfiles(ctx, s.db)
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return queryGetProfile(ctx, s.db, id)
}

func (s *PostgresStore) ActiveProfile(ctx context.Context) (*model.Profile, error) {
	return queryActiveProfile(ctx, s.db)
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	return s.inTx(ctx, func(tx executor) error { return queryCreateProfile(ctx, tx, p) })
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx executor) error { return queryDeleteProfile(ctx, tx, id) })
}

func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.inTx(ctx, func(tx executor) error { return querySetActive(ctx, tx, id, active) })
}

func (s *PostgresStore) LoadStructure(ctx context.Context, id string) ([]byte, error) {
	return queryLoadStructure(ctx, s.db, id)
}

func (s *PostgresStore) SaveStructure(ctx context.Context, id string, st store.Structure) error {
	return querySaveStructure(ctx, s.db, id, st)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// inTx runs multi-statement operations atomically.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx executor) error) error {
	return s.RunInTransaction(ctx, func(t store.Store) error {
		return fn(t.(*txStore).tx)
	})
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	return queryListProfiles(ctx, s.tx)
}

func (s *txStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return queryGetProfile(ctx, s.tx, id)
}

func (s *txStore) ActiveProfile(ctx context.Context) (*model.Profile, error) {
	return queryActiveProfile(ctx, s.tx)
}

func (s *txStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	return queryCreateProfile(ctx, s.tx, p)
}

func (s *txStore) DeleteProfile(ctx context.Context, id string) error {
	return queryDeleteProfile(ctx, s.tx, id)
}

func (s *txStore) SetActive(ctx context.Context, id string, active bool) error {
	return querySetActive(ctx, s.tx, id, active)
}

func (s *txStore) LoadStructure(ctx context.Context, id string) ([]byte, error) {
	return queryLoadStructure(ctx, s.tx, id)
}

func (s *txStore) SaveStructure(ctx context.Context, id string, st store.Structure) error {
	return querySaveStructure(ctx, s.tx, id, st)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

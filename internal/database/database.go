package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"aidigest/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

const busyTimeoutMillis = 5000

// Database owns the sqlite handle. Each entity type is written only through
// its own store: Items, Ledger and Subscribers.
type Database struct {
	db  *sql.DB
	log *slog.Logger

	items       *ItemStore
	ledger      *DeliveryLedger
	subscribers *SubscriberRegistry
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	if err = dbFile.PingContext(ctx); err != nil {
		_ = dbFile.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	if err = migrateUp(ctx, dbFile, dbPath, log); err != nil {
		_ = dbFile.Close()
		return nil, err
	}

	d := &Database{db: dbFile, log: log}
	d.items = &ItemStore{db: dbFile, log: log}
	d.ledger = &DeliveryLedger{db: dbFile, log: log}
	d.subscribers = &SubscriberRegistry{db: dbFile, log: log}

	return d, nil
}

func (d *Database) Items() *ItemStore {
	return d.items
}

func (d *Database) Ledger() *DeliveryLedger {
	return d.ledger
}

func (d *Database) Subscribers() *SubscriberRegistry {
	return d.subscribers
}

func (d *Database) Close() error {
	return d.db.Close()
}

func dsn(dbPath string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeoutMillis))
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")

	return "file:" + dbPath + "?" + params.Encode()
}

func migrateUp(ctx context.Context, dbFile *sql.DB, dbPath string, log *slog.Logger) error {
	dbInstance, err := sqlite3.WithInstance(dbFile, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	version, dirty, versionErr := m.Version()
	fields := []any{
		"dbPath", dbPath,
	}

	if versionErr == nil {
		fields = append(fields, "version", version, "dirty", dirty)
	} else if !errors.Is(versionErr, migrate.ErrNilVersion) {
		log.WarnContext(ctx, "Failed to fetch migration version",
			"error", versionErr,
			"dbPath", dbPath)
	}

	if migrateErr != nil {
		if !errors.Is(migrateErr, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", migrateErr)
		}

		log.InfoContext(ctx, "No migrations to apply", fields...)
	} else {
		log.InfoContext(ctx, "DB is migrated", fields...)
	}

	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

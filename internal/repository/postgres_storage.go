package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createStorageTable = `CREATE TABLE IF NOT EXISTS client_storage (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (r *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createStorageTable); err != nil {
		return fmt.Errorf("failed to create client_storage table: %w", err)
	}
	return nil
}

// RunAtomic executes fn within a transaction. Storage calls made with the
// ctx passed to fn run inside that transaction.
func (r *PostgresStorage) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once the commit succeeded.
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txKey struct{}

func (r *PostgresStorage) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgxpool.Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.getExecutor(ctx).QueryRow(ctx, "SELECT value FROM client_storage WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *PostgresStorage) Set(ctx context.Context, key, value string) error {
	return r.RunAtomic(ctx, func(ctx context.Context) error {
		_, err := r.getExecutor(ctx).Exec(ctx, `
			INSERT INTO client_storage (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to set %q: %w", key, err)
		}
		return nil
	})
}

func (r *PostgresStorage) Remove(ctx context.Context, key string) error {
	_, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM client_storage WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// commit validation. The value is arbitrary but must be consistent across
// all gateway instances sharing the database.
const advisoryLockKey = int64(7_420_118_213)

// PostgresStore persists the versioned state to a PostgreSQL database.
// It implements the Store interface. Values are stored as jsonb so that
// selector queries can use containment.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// EnsureSchema creates the state table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS educhain_state (
			key     text PRIMARY KEY,
			value   jsonb NOT NULL,
			version bigint NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure state schema: %w", err)
	}
	return nil
}

// Begin implements Store.
func (s *PostgresStore) Begin(_ context.Context) (Tx, error) {
	return &pgTx{
		store:  s,
		reads:  make(map[string]int64),
		writes: make(map[string][]byte),
	}, nil
}

type pgTx struct {
	store  *PostgresStore
	reads  map[string]int64 // key → version observed; 0 = absent
	writes map[string][]byte
	done   bool
}

// Get implements Tx.
func (t *pgTx) Get(ctx context.Context, key string) ([]byte, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	var value []byte
	var version int64
	err := t.store.pool.QueryRow(ctx,
		"SELECT value, version FROM educhain_state WHERE key = $1", key,
	).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		t.reads[key] = 0
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state key: %w", err)
	}
	t.reads[key] = version
	return value, nil
}

// Has implements Tx.
func (t *pgTx) Has(ctx context.Context, key string) (bool, error) {
	v, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Put implements Tx.
func (t *pgTx) Put(_ context.Context, key string, value []byte) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.writes[key] = value
	return nil
}

// Query implements Tx. It uses jsonb containment so the selector fields are
// matched exactly inside the stored document.
func (t *pgTx) Query(ctx context.Context, selector map[string]string) (Iterator, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("marshal selector: %w", err)
	}
	rows, err := t.store.pool.Query(ctx,
		"SELECT key, value FROM educhain_state WHERE value @> $1::jsonb", sel)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	return &pgIterator{rows: rows}, nil
}

// Commit implements Tx. Validation and writes run in one database
// transaction serialised by an advisory lock, so a stale read observed here
// is the same staleness a replica would see at its own commit point.
func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	for key, observed := range t.reads {
		var current int64
		err := tx.QueryRow(ctx,
			"SELECT version FROM educhain_state WHERE key = $1", key,
		).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("revalidate read: %w", err)
		}
		if current != observed {
			t.store.logger.Debug("commit aborted on stale read",
				zap.String("key", key),
				zap.Int64("observed", observed),
				zap.Int64("current", current),
			)
			return ErrConflict
		}
	}

	for key, value := range t.writes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO educhain_state (key, value, version) VALUES ($1, $2, 1)
			ON CONFLICT (key) DO UPDATE
			SET value = excluded.value, version = educhain_state.version + 1`,
			key, value,
		); err != nil {
			return fmt.Errorf("apply write: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}

// Discard implements Tx.
func (t *pgTx) Discard() {
	t.done = true
}

type pgIterator struct {
	rows  pgx.Rows
	key   string
	value []byte
	err   error
}

func (it *pgIterator) Next() bool {
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	if err := it.rows.Scan(&it.key, &it.value); err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *pgIterator) Key() string   { return it.key }
func (it *pgIterator) Value() []byte { return it.value }
func (it *pgIterator) Err() error    { return it.err }
func (it *pgIterator) Close()        { it.rows.Close() }

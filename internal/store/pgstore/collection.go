// Package pgstore implements store.Collection on PostgreSQL using pgx.
//
// Each collection lives in its own document table:
//
//	seq        BIGSERIAL   insertion order
//	id         TEXT        primary key
//	created_at TIMESTAMPTZ record creation time
//	doc        JSONB       the JSON-encoded record
//
// Mutate locks the table in SHARE ROW EXCLUSIVE mode for the duration of one
// transaction, which serializes writers across processes while still allowing
// plain reads.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

// DB is the subset of *pgxpool.Pool used by Collection.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

// Collection persists records of type T in a PostgreSQL document table.
type Collection[T query.Record] struct {
	db    DB
	table string
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	prefix string
}

// WithTablePrefix prepends prefix to the table name, so several deployments
// can share one database.
func WithTablePrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// New returns a Collection stored in table (plus any WithTablePrefix).
func New[T query.Record](db DB, table string, opts ...Option) *Collection[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		db:    db,
		table: pgx.Identifier{o.prefix + table}.Sanitize(),
	}
}

// ErrNotMigrated is returned when the backing table does not exist yet.
var ErrNotMigrated = errors.New("table not migrated")

// Connect opens a pgx pool for dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the backing table if it does not exist.
func (c *Collection[T]) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq        BIGSERIAL,
			id         TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			doc        JSONB NOT NULL
		)`, c.table)
	if _, err := c.db.Exec(ctx, q); err != nil {
		return fmt.Errorf("migrating %s: %w", c.table, err)
	}
	return nil
}

// LoadAll returns all records in insertion order.
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	return c.load(ctx, c.db)
}

// SaveAll replaces the stored collection with records.
func (c *Collection[T]) SaveAll(ctx context.Context, records []T) error {
	return c.Mutate(ctx, func([]T) ([]T, error) { return records, nil })
}

// Mutate applies fn to the current records inside a locked transaction and
// writes only the rows that were removed, added, or changed.
func (c *Collection[T]) Mutate(ctx context.Context, fn store.MutateFunc[T]) (err error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE", c.table)); err != nil {
		return fmt.Errorf("locking %s: %w", c.table, err)
	}

	current, err := c.load(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err = c.applyDiff(ctx, tx, current, next); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Collection[T]) Ping(ctx context.Context) error {
	return c.db.Ping(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (c *Collection[T]) load(ctx context.Context, q querier) ([]T, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT doc FROM %s ORDER BY seq", c.table))
	if err != nil {
		return nil, c.loadErr(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", c.table, err)
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", c.table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, c.loadErr(err)
	}
	return out, nil
}

func (c *Collection[T]) loadErr(err error) error {
	if IsUndefinedTable(err) {
		return fmt.Errorf("loading %s: %w: %w", c.table, ErrNotMigrated, err)
	}
	return fmt.Errorf("loading %s: %w", c.table, err)
}

func (c *Collection[T]) applyDiff(ctx context.Context, tx pgx.Tx, current, next []T) error {
	before := make(map[string]T, len(current))
	for _, r := range current {
		before[r.RecordID()] = r
	}

	batch := &pgx.Batch{}
	keep := make(map[string]struct{}, len(next))
	upsert := fmt.Sprintf(`
		INSERT INTO %s (id, created_at, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, c.table)

	for _, r := range next {
		id := r.RecordID()
		if _, dup := keep[id]; dup {
			return fmt.Errorf("duplicate id %q: %w", id, query.ErrDuplicateID)
		}
		keep[id] = struct{}{}
		if old, ok := before[id]; ok && reflect.DeepEqual(old, r) {
			continue
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", id, err)
		}
		batch.Queue(upsert, id, r.RecordTime(), doc)
	}

	var removed []string
	for id := range before {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		batch.Queue(fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", c.table), removed)
	}

	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("writing %s: %w", c.table, err)
		}
	}
	return br.Close()
}

// IsUndefinedTable reports whether err is PostgreSQL's "relation does not exist".
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

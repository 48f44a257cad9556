// Package database is the persistence gateway shared by every store: a thin
// layer over sqlx that picks the ambient transaction from the context and
// hides the placeholder differences between SQLite and Postgres.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	txcontext "clinictrack/pkg/platform/tx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend behind a gateway.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const defaultTxTimeout = 5 * time.Second

func init() {
	// sqlx does not know modernc's driver name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds database connection configuration.
type Config struct {
	Driver          Dialect
	Path            string // SQLite file
	URL             string // Postgres connection string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConfig returns sensible defaults for database configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          DialectSQLite,
		Path:            "clinictrack.db",
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

// Result reports the effect of a write.
// InsertedID is only populated on SQLite; Postgres inserts use RETURNING.
type Result struct {
	Changes    int64
	InsertedID int64
}

// Gateway is the narrow query surface stores depend on.
type Gateway interface {
	Get(ctx context.Context, dest any, query string, args ...any) error
	All(ctx context.Context, dest any, query string, args ...any) error
	Run(ctx context.Context, query string, args ...any) (Result, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Dialect() Dialect
}

// DB is the sqlx-backed Gateway.
type DB struct {
	db        *sqlx.DB
	dialect   Dialect
	txTimeout time.Duration
}

// Open connects and pings the configured backend.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var (
		driverName string
		dsn        string
	)
	switch cfg.Driver {
	case DialectSQLite, "":
		cfg.Driver = DialectSQLite
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		driverName = "sqlite"
		dsn = sqliteDSN(cfg.Path, cfg.BusyTimeout)
	case DialectPostgres:
		if cfg.URL == "" {
			return nil, fmt.Errorf("postgres url is required")
		}
		driverName = "pgx"
		dsn = cfg.URL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db: db, dialect: cfg.Driver, txTimeout: defaultTxTimeout}, nil
}

// sqliteDSN builds a modernc DSN. Write transactions begin IMMEDIATE so
// concurrent writers queue on busy_timeout instead of failing at COMMIT.
func sqliteDSN(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// SQLX exposes the handle for migrations and health checks.
func (d *DB) SQLX() *sqlx.DB {
	return d.db
}

func (d *DB) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return d.db
}

// Get scans a single row into dest. It returns sql.ErrNoRows when nothing matches.
func (d *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, d.ext(ctx), dest, d.db.Rebind(query), args...)
}

// All scans every row into dest, which must be a pointer to a slice.
func (d *DB) All(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, d.ext(ctx), dest, d.db.Rebind(query), args...)
}

func (d *DB) Run(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := d.ext(ctx).ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return Result{}, err
	}
	changes, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	out := Result{Changes: changes}
	if d.dialect == DialectSQLite {
		if id, err := res.LastInsertId(); err == nil {
			out.InsertedID = id
		}
	}
	return out, nil
}

// RunInTx runs fn inside a transaction carried by the context. A context that
// already carries one joins it. The transaction rolls back when fn returns an
// error or panics.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.txTimeout)
		defer cancel()
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Health checks if the database is reachable.
func (d *DB) Health(ctx context.Context) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("database not configured")
	}
	return d.db.PingContext(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// LockClause returns the row-locking suffix for a SELECT inside a write
// transaction. SQLite transactions are already IMMEDIATE.
func (d *DB) LockClause() string {
	if d.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

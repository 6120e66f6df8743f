package attemptlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const createAttemptsTableSQL = `
CREATE TABLE IF NOT EXISTS goguard_attempts (
    identifier VARCHAR(320) NOT NULL,
    dimension VARCHAR(16) NOT NULL,
    action VARCHAR(32) NOT NULL,
    attempted_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goguard_attempts_lookup ON goguard_attempts(identifier, dimension, action, attempted_at);
`

var ErrUnsupportedDialect = errors.New("unsupported attempt log dialect")

// SQLLog stores attempts in a single goguard_attempts table.
type SQLLog struct {
	db      *sql.DB
	dialect string
	owned   bool
}

// Open connects to dsn with the driver for dialect and prepares the schema.
func Open(ctx context.Context, dialect, dsn string) (*SQLLog, error) {
	driver, err := driverFor(dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open attempt log: %w", err)
	}
	if dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	l, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// New wraps an existing connection pool and prepares the schema.
func New(ctx context.Context, db *sql.DB, dialect string) (*SQLLog, error) {
	if db == nil {
		return nil, fmt.Errorf("attempt log: database connection is required")
	}
	if _, err := driverFor(dialect); err != nil {
		return nil, err
	}

	l := &SQLLog{db: db, dialect: dialect}
	if err := l.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("attempt log: initialize schema: %w", err)
	}
	return l, nil
}

func driverFor(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: %q (supported: sqlite, postgres)", ErrUnsupportedDialect, dialect)
	}
}

func (l *SQLLog) initSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(createAttemptsTableSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadAttempts counts the attempts for key at or after since.
func (l *SQLLog) LoadAttempts(ctx context.Context, key rate.Key, since time.Time) (int, error) {
	query := l.rebind(`SELECT COUNT(*) FROM goguard_attempts WHERE identifier = ? AND dimension = ? AND action = ? AND attempted_at >= ?`)

	var n int
	err := l.db.QueryRowContext(ctx, query, key.Identifier, key.Dimension.String(), key.Action.String(), since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("load attempts: %w", err)
	}
	return n, nil
}

// AppendAttempt records one attempt for key.
func (l *SQLLog) AppendAttempt(ctx context.Context, key rate.Key, at time.Time) error {
	query := l.rebind(`INSERT INTO goguard_attempts (identifier, dimension, action, attempted_at) VALUES (?, ?, ?, ?)`)

	if _, err := l.db.ExecContext(ctx, query, key.Identifier, key.Dimension.String(), key.Action.String(), at.UnixNano()); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// DeleteAttempts forgets every attempt for key.
func (l *SQLLog) DeleteAttempts(ctx context.Context, key rate.Key) error {
	query := l.rebind(`DELETE FROM goguard_attempts WHERE identifier = ? AND dimension = ? AND action = ?`)

	if _, err := l.db.ExecContext(ctx, query, key.Identifier, key.Dimension.String(), key.Action.String()); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}

// Prune removes rows older than before and returns how many were deleted.
func (l *SQLLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	query := l.rebind(`DELETE FROM goguard_attempts WHERE attempted_at < ?`)

	res, err := l.db.ExecContext(ctx, query, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune attempts: rows affected: %w", err)
	}
	return n, nil
}

// Close closes the pool when it was opened by [Open].
func (l *SQLLog) Close() error {
	if l == nil || !l.owned {
		return nil
	}
	return l.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (l *SQLLog) rebind(query string) string {
	if l.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

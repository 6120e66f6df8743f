package attemptlog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"
)

var errNoRowCount = errors.New("row count unavailable")

// noCountDriver accepts every statement but cannot report affected rows.
type noCountDriver struct{}

func (noCountDriver) Open(string) (driver.Conn, error) { return noCountConn{}, nil }

type noCountConn struct{}

func (noCountConn) Prepare(string) (driver.Stmt, error) { return noCountStmt{}, nil }
func (noCountConn) Close() error                        { return nil }
func (noCountConn) Begin() (driver.Tx, error)           { return nil, errors.New("no transactions") }

type noCountStmt struct{}

func (noCountStmt) Close() error                               { return nil }
func (noCountStmt) NumInput() int                              { return -1 }
func (noCountStmt) Exec([]driver.Value) (driver.Result, error) { return noCountResult{}, nil }
func (noCountStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("no queries")
}

type noCountResult struct{}

func (noCountResult) LastInsertId() (int64, error) { return 0, nil }
func (noCountResult) RowsAffected() (int64, error) { return 0, errNoRowCount }

func init() {
	sql.Register("goguard-nocount", noCountDriver{})
}

func TestSQLLog_PruneReportsRowCountFailure(t *testing.T) {
	db, err := sql.Open("goguard-nocount", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	l, err := New(context.Background(), db, DialectSQLite)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	n, err := l.Prune(context.Background(), time.Now())
	if !errors.Is(err, errNoRowCount) {
		t.Fatalf("expected row count error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("pruned %d rows, want 0", n)
	}
}

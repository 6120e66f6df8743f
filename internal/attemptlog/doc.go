// Package attemptlog is the durable attempt history behind the rate evaluator.
//
// Every counted attempt becomes one timestamped row. After a restart the
// evaluator rebuilds a key's count from the rows inside its window, so a
// process bounce does not hand an attacker a fresh budget.
//
// Supported dialects are "sqlite" (mattn/go-sqlite3) and "postgres"
// (jackc/pgx stdlib). Timestamps are stored as unix nanoseconds so both
// dialects compare them the same way.
package attemptlog

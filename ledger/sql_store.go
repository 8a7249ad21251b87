package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore is the Token Ledger table from the router contract: append-only rows
// keyed by (familyId, timestamp), same database/sql + lib/pq/sqlite stack
// as snapshot.SQLStore and authz.SQLDirectory.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed ledger table.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "llm-router-ledger.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialectSQLite}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore opens a Postgres-backed ledger table.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres ledger: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialectPostgres}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s ledger: %w", s.dialect, err)
	}
	var ddl string
	switch s.dialect {
	case dialectPostgres:
		ddl = `
CREATE TABLE IF NOT EXISTS token_ledger (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	family_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost DOUBLE PRECISION NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	success BOOLEAN NOT NULL
);`
	default:
		ddl = `
CREATE TABLE IF NOT EXISTS token_ledger (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	family_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	ts DATETIME NOT NULL,
	success BOOLEAN NOT NULL
);`
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s ledger schema: %w", s.dialect, err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_token_ledger_family_ts ON token_ledger(family_id, ts)`); err != nil {
		return fmt.Errorf("initialize %s ledger index: %w", s.dialect, err)
	}
	return nil
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, e Entry) error {
	q := s.bind(`INSERT INTO token_ledger(request_id, family_id, provider, model, prompt_tokens, completion_tokens, cost, ts, success) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, e.RequestID, e.FamilyID, e.Provider, e.Model, e.PromptTokens, e.CompletionTokens, e.Cost, e.Timestamp.UTC(), e.Success)
	return err
}

// Recent implements Store, returning the most recent limit entries ordered
// newest-first, for the admin ledger-dump endpoint.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.bind(`SELECT request_id, family_id, provider, model, prompt_tokens, completion_tokens, cost, ts, success FROM token_ledger ORDER BY ts DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RequestID, &e.FamilyID, &e.Provider, &e.Model, &e.PromptTokens, &e.CompletionTokens, &e.Cost, &e.Timestamp, &e.Success); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	argNum := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", argNum)
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

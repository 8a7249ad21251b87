package snapshot

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

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

// SQLStore loads Config Snapshots from the Provider Config table, keyed by
// the opaque configId referenced by ACTIVE_CONFIG_ID. Rows are written by
// the admin API or operator tooling and read here verbatim: SQLStore never
// mutates a row, it only decodes what it finds.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed Provider Config table.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "llm-router-config.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite config store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore opens a Postgres-backed Provider Config table.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres config store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectPostgres}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s config store: %w", s.dialect, err)
	}

	var ddl string
	switch s.dialect {
	case dialectPostgres:
		ddl = `
CREATE TABLE IF NOT EXISTS provider_config (
	config_id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	default:
		ddl = `
CREATE TABLE IF NOT EXISTS provider_config (
	config_id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	created_at DATETIME NOT NULL
);`
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s config store schema: %w", s.dialect, err)
	}
	return nil
}

// Load implements Store: it fetches the row for configID, validates it
// against the Config Snapshot schema, and decodes it.
func (s *SQLStore) Load(configID string) (Snapshot, error) {
	q := s.bind(`SELECT document FROM provider_config WHERE config_id = ?`)
	var raw string
	err := s.db.QueryRow(q, configID).Scan(&raw)
	if err == sql.ErrNoRows {
		return Snapshot{}, &ErrNotFound{ID: configID}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: loading config %q: %w", configID, err)
	}
	return DecodeJSON([]byte(raw))
}

// Put upserts the raw JSON document for configID, after validating it.
// No admin API route or CLI command in this repository calls it.
func (s *SQLStore) Put(configID string, document []byte) error {
	if err := Validate(document); err != nil {
		return err
	}
	now := time.Now().UTC()
	switch s.dialect {
	case dialectPostgres:
		q := s.bind(`
INSERT INTO provider_config(config_id, document, created_at) VALUES(?, ?, ?)
ON CONFLICT (config_id) DO UPDATE SET document = EXCLUDED.document, created_at = EXCLUDED.created_at`)
		_, err := s.db.Exec(q, configID, string(document), now)
		return err
	default:
		q := s.bind(`INSERT OR REPLACE INTO provider_config(config_id, document, created_at) VALUES(?, ?, ?)`)
		_, err := s.db.Exec(q, configID, string(document), now)
		return err
	}
}

func (s *SQLStore) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
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

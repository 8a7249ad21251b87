package authz

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

// SQLDirectory implements Directory against the Families/Profiles tables,
// mirroring snapshot.SQLStore's dialect-bind pattern.
type SQLDirectory struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteDirectory opens (creating if needed) the Families/Profiles
// tables in a SQLite database, for local/dev and tests.
func NewSQLiteDirectory(dsn string) (*SQLDirectory, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "llm-router-directory.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite directory: %w", err)
	}
	d := &SQLDirectory{db: db, dialect: dialectSQLite}
	if err := d.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewPostgresDirectory opens the Families/Profiles tables in Postgres.
func NewPostgresDirectory(dsn string) (*SQLDirectory, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres directory: %w", err)
	}
	d := &SQLDirectory{db: db, dialect: dialectPostgres}
	if err := d.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *SQLDirectory) init() error {
	if err := d.db.Ping(); err != nil {
		return fmt.Errorf("ping %s directory: %w", d.dialect, err)
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS families (
	family_id TEXT PRIMARY KEY,
	token_balance BIGINT NOT NULL,
	pause_status_family BOOLEAN NOT NULL,
	primary_region TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS profiles (
	profile_id TEXT PRIMARY KEY,
	family_id TEXT NOT NULL,
	role TEXT NOT NULL,
	pause_status_profile BOOLEAN NOT NULL,
	user_region TEXT NOT NULL
);`,
	}
	for _, stmt := range ddl {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize %s directory schema: %w", d.dialect, err)
		}
	}
	return nil
}

// LoadProfile implements Directory. profileID is expected in the region-
// prefixed form the router contract describes ("PROFILE#<region>#<logicalId>"); the
// row is looked up by that composite key directly. region is accepted for
// symmetry with LoadFamily and is not used; profile.UserRegion is returned
// as stored, without a check against region.
func (d *SQLDirectory) LoadProfile(ctx context.Context, profileID, region string) (Profile, error) {
	q := d.bind(`SELECT profile_id, family_id, role, pause_status_profile, user_region FROM profiles WHERE profile_id = ?`)
	var p Profile
	err := d.db.QueryRowContext(ctx, q, profileID).Scan(&p.ProfileID, &p.FamilyID, &p.Role, &p.PauseStatusProfile, &p.UserRegion)
	if err != nil {
		return Profile{}, wrapSQLErr(err)
	}
	_ = region
	return p, nil
}

// LoadFamily implements Directory. familyID follows the same region-
// prefixed convention as LoadProfile.
func (d *SQLDirectory) LoadFamily(ctx context.Context, familyID, region string) (Family, error) {
	q := d.bind(`SELECT family_id, token_balance, pause_status_family, primary_region FROM families WHERE family_id = ?`)
	var f Family
	err := d.db.QueryRowContext(ctx, q, familyID).Scan(&f.FamilyID, &f.TokenBalance, &f.PauseStatusFamily, &f.PrimaryRegion)
	if err != nil {
		return Family{}, wrapSQLErr(err)
	}
	_ = region
	return f, nil
}

// PutFamily upserts a Family row, used by operator tooling and tests.
func (d *SQLDirectory) PutFamily(ctx context.Context, f Family) error {
	switch d.dialect {
	case dialectPostgres:
		q := d.bind(`
INSERT INTO families(family_id, token_balance, pause_status_family, primary_region) VALUES(?, ?, ?, ?)
ON CONFLICT (family_id) DO UPDATE SET token_balance = EXCLUDED.token_balance, pause_status_family = EXCLUDED.pause_status_family, primary_region = EXCLUDED.primary_region`)
		_, err := d.db.ExecContext(ctx, q, f.FamilyID, f.TokenBalance, f.PauseStatusFamily, f.PrimaryRegion)
		return err
	default:
		q := d.bind(`INSERT OR REPLACE INTO families(family_id, token_balance, pause_status_family, primary_region) VALUES(?, ?, ?, ?)`)
		_, err := d.db.ExecContext(ctx, q, f.FamilyID, f.TokenBalance, f.PauseStatusFamily, f.PrimaryRegion)
		return err
	}
}

// PutProfile upserts a Profile row, used by operator tooling and tests.
func (d *SQLDirectory) PutProfile(ctx context.Context, p Profile) error {
	switch d.dialect {
	case dialectPostgres:
		q := d.bind(`
INSERT INTO profiles(profile_id, family_id, role, pause_status_profile, user_region) VALUES(?, ?, ?, ?, ?)
ON CONFLICT (profile_id) DO UPDATE SET family_id = EXCLUDED.family_id, role = EXCLUDED.role, pause_status_profile = EXCLUDED.pause_status_profile, user_region = EXCLUDED.user_region`)
		_, err := d.db.ExecContext(ctx, q, p.ProfileID, p.FamilyID, p.Role, p.PauseStatusProfile, p.UserRegion)
		return err
	default:
		q := d.bind(`INSERT OR REPLACE INTO profiles(profile_id, family_id, role, pause_status_profile, user_region) VALUES(?, ?, ?, ?, ?)`)
		_, err := d.db.ExecContext(ctx, q, p.ProfileID, p.FamilyID, p.Role, p.PauseStatusProfile, p.UserRegion)
		return err
	}
}

// DebitTokens subtracts amount from family's balance, best-effort and
// non-blocking from the Router's perspective.
func (d *SQLDirectory) DebitTokens(ctx context.Context, familyID string, amount int64) error {
	q := d.bind(`UPDATE families SET token_balance = token_balance - ? WHERE family_id = ?`)
	_, err := d.db.ExecContext(ctx, q, amount, familyID)
	return err
}

func (d *SQLDirectory) bind(query string) string {
	if d.dialect != dialectPostgres {
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
func (d *SQLDirectory) Close() error {
	return d.db.Close()
}

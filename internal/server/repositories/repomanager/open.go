package repomanager

import (
	"database/sql"
	"fmt"
	"strings"
)

// Open connects to the database identified by dsn and returns the connection
// together with the matching RepositoryManager. PostgreSQL DSNs start with
// postgres:// or postgresql://; everything else is treated as a SQLite DSN,
// with an optional sqlite: prefix stripped before opening.
func Open(dsn string) (*sql.DB, RepositoryManager, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres connection: %w", err)
		}
		return db, NewPostgresRepositoryManager(), nil
	default:
		dsn = strings.TrimPrefix(dsn, "sqlite:")
		db, err := sql.Open("sqlite3", sqliteDSN(dsn))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite connection: %w", err)
		}
		return db, NewSQLiteRepositoryManager(), nil
	}
}

// sqliteDSN makes sure foreign-key enforcement is on; SQLite defaults it to
// off, which would silently disable the ledger's ON DELETE CASCADE.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

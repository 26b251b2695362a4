// Package repomanager vends SQL repository implementations for a chosen
// database engine and runs the embedded goose migrations. PostgreSQL (pgx)
// and SQLite (go-sqlite3) are supported; the engine is selected from the
// DSN scheme.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/server/repositories/postentries"
	"github.com/hushdrop/hushdrop/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	PostEntries(db dbx.DBTX) postentries.Repository
}

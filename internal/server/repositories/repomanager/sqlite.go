package repomanager

import (
	"context"
	"database/sql"

	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/server/migrations"
	"github.com/hushdrop/hushdrop/internal/server/repositories/postentries"
	"github.com/hushdrop/hushdrop/internal/server/repositories/records"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. The SQL
// repositories are shared with PostgreSQL; only the migration dialect and
// driver differ.
type SQLiteRepositoryManager struct{}

// NewSQLiteRepositoryManager constructs a SQLite-backed RepositoryManager.
func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

// Records returns a records.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewSQLRepository(db)
}

// PostEntries returns a postentries.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) PostEntries(db dbx.DBTX) postentries.Repository {
	return postentries.NewSQLRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

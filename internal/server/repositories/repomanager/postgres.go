package repomanager

import (
	"context"
	"database/sql"

	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/server/migrations"
	"github.com/hushdrop/hushdrop/internal/server/repositories/postentries"
	"github.com/hushdrop/hushdrop/internal/server/repositories/records"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories and runs
// migrations with the pgx dialect.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Records returns a records.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewSQLRepository(db)
}

// PostEntries returns a postentries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) PostEntries(db dbx.DBTX) postentries.Repository {
	return postentries.NewSQLRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

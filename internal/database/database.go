// Package database wraps a Postgres connection used by the admin plane's
// database health check, plus the golang-migrate-backed schema migrator
// used by cmd/migrate. The audit sink (C8) does not use it; it writes
// through its own pgxpool.Pool. Connection parameters come from the
// CRASHLINE_DB_* environment variables, matching the teacher's
// BLUEPRINT_DB_* convention in spirit.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Service is the connection handle the admin plane health-checks.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

var (
	database = getEnv("CRASHLINE_DB_DATABASE", "crashdb")
	password = getEnv("CRASHLINE_DB_PASSWORD", "postgres")
	username = getEnv("CRASHLINE_DB_USERNAME", "postgres")
	host     = getEnv("CRASHLINE_DB_HOST", "localhost")
	port     = getEnv("CRASHLINE_DB_PORT", "5432")

	dbInstance *service
)

// New opens (or returns the already-open) connection pool. It does not
// probe the connection; call Health to confirm reachability.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	db, err := sql.Open("pgx", dsn())
	if err != nil {
		log.Fatalf("database: open failed: %v", err)
	}

	dbInstance = &service{db: db}
	return dbInstance
}

func dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		username, password, host, port, database)
}

func (s *service) DB() *sql.DB { return s.db }

func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	if err := s.db.Ping(); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	return stats
}

func (s *service) Close() error {
	log.Printf("database: disconnecting from %s", database)
	return s.db.Close()
}

// RunMigrations applies every pending migration in migrationsPath.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	m, err := migrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// RollbackMigration reverts the single most recently applied migration.
func RollbackMigration(db *sql.DB, migrationsPath string) error {
	m, err := migrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// GetMigrationVersion reports the currently applied migration version.
func GetMigrationVersion(db *sql.DB, migrationsPath string) (uint, bool, error) {
	m, err := migrator(db, migrationsPath)
	if err != nil {
		return 0, false, err
	}
	return m.Version()
}

func migrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		database,
		driver,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var schemaFS embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Service represents the database service with connection management.
// Queries are written with ? placeholders; Rebind translates them for
// Postgres so the same query text serves both drivers.
type Service struct {
	DB     *sql.DB
	Driver string
	DBPath string
}

// Config holds database configuration
type Config struct {
	Driver         string
	DBPath         string // sqlite file path
	DSN            string // postgres connection string
	MaxOpenConns   int
	MaxIdleConns   int
	AutoInitialize bool // create schema objects at startup
}

// DefaultConfig returns default database configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverSQLite,
		DBPath:         "./db/directory.db",
		MaxOpenConns:   1, // SQLite doesn't handle concurrent writes well
		MaxIdleConns:   1,
		AutoInitialize: true,
	}
}

// FromEnv builds configuration from environment variables. DB_DRIVER selects
// the backend; Postgres settings follow the PG_* convention.
func FromEnv() *Config {
	cfg := DefaultConfig()
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if cfg.Driver == DriverPostgres {
		cfg.DSN = BuildPostgresDSNFromEnv()
		cfg.MaxOpenConns = 50
		cfg.MaxIdleConns = 25
		if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.MaxOpenConns = n
			}
		}
		if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.MaxIdleConns = n
			}
		}
	}
	return cfg
}

// BuildPostgresDSNFromEnv assembles a connection string from PG_* variables.
func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	name := os.Getenv("PG_DB")
	if name == "" {
		name = "directory"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
	return dsn
}

// New creates a new database service instance
func New(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	service := &Service{
		Driver: config.Driver,
		DBPath: config.DBPath,
	}

	var dsn string
	switch config.Driver {
	case DriverSQLite:
		// Ensure the directory exists
		dbDir := filepath.Dir(config.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = config.DBPath
	case DriverPostgres:
		dsn = config.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	database, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database.SetMaxOpenConns(config.MaxOpenConns)
	database.SetMaxIdleConns(config.MaxIdleConns)
	database.SetConnMaxLifetime(0)

	service.DB = database

	// Test the connection
	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Schema DDL is idempotent, so initialization is safe on every start.
	if config.AutoInitialize {
		if err := service.InitializeSchema(); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return service, nil
}

// InitializeSchema loads and executes the schema file for the active driver.
func (s *Service) InitializeSchema() error {
	name := "schema_sqlite.sql"
	if s.Driver == DriverPostgres {
		name = "schema_postgres.sql"
	}
	schemaSQL, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.DB.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// VerifySchema checks if the database schema is properly initialized
func (s *Service) VerifySchema() error {
	requiredTables := []string{
		"buildings",
		"activities",
		"organizations",
		"organization_activities",
		"phones",
		"audit_log",
	}

	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	if s.Driver == DriverPostgres {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name=?`
	}

	for _, table := range requiredTables {
		var exists int
		if err := s.DB.QueryRow(s.Rebind(query), table).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if exists == 0 {
			return fmt.Errorf("required table missing: %s", table)
		}
	}
	return nil
}

// Rebind converts ? placeholders to $N for Postgres.
func (s *Service) Rebind(query string) string {
	if s.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

func (s *Service) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.Rebind(query), args...)
}

func (s *Service) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.Rebind(query), args...)
}

func (s *Service) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.DB.ExecContext(ctx, s.Rebind(query), args...)
}

// Tx wraps *sql.Tx so transactional code gets the same placeholder
// rebinding as the pooled connection.
type Tx struct {
	tx  *sql.Tx
	svc *Service
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.svc.Rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.svc.Rebind(query), args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.svc.Rebind(query), args...)
}

// Transaction executes a function within a database transaction
func (s *Service) Transaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(&Tx{tx: tx, svc: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure
// from either driver.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Health checks the database connection health
func (s *Service) Health() error {
	if s.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.DB.Ping()
}

// GetStats returns database connection statistics
func (s *Service) GetStats() sql.DBStats {
	return s.DB.Stats()
}

// Close closes the database connection
func (s *Service) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

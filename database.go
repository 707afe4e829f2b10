package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver for goose.OpenDBWithDriver
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseConfig selects and parametrises the ledger's backing store.
// Driver is either "postgres" (durable, the production default) or
// "sqlite" (single-file or in-memory, used by tests and the seed CLI).
// Retries bounds how many dial attempts ConnectToDB makes in total
// before giving up, with a linear backoff between attempts.
type DatabaseConfig struct {
	URL      string `env:"LEDGERD_DATABASE_URL" env-default:""`
	Name     string `env:"LEDGERD_DATABASE_NAME" env-default:""`
	Driver   string `env:"LEDGERD_DATABASE_DRIVER" env-default:"postgres"`
	Username string `env:"LEDGERD_DATABASE_USERNAME" env-default:"postgres"`
	Password string `env:"LEDGERD_DATABASE_PASSWORD" env-default:"your-super-secret-and-long-postgres-password"`
	Host     string `env:"LEDGERD_DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"LEDGERD_DATABASE_PORT" env-default:"5432"`
	Retries  int    `env:"LEDGERD_DATABASE_RETRIES" env-default:"5"`
}

// ParseConnectionString turns a single LEDGERD_DATABASE_URL into a
// DatabaseConfig, so an operator can configure the store with one
// environment variable instead of the individual LEDGERD_DATABASE_*
// fields. A "file:" prefix selects sqlite; anything else is parsed as a
// postgres:// or postgresql:// URI.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		dbName := strings.SplitN(connStr[len("file:"):], "?", 2)[0]
		return DatabaseConfig{Name: dbName, Driver: "sqlite", Retries: 1}, nil
	}

	parsed, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("database: invalid connection string: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("database: unsupported scheme: %s", parsed.Scheme)
	}

	var username, password string
	if parsed.User != nil {
		username = parsed.User.Username()
		password, _ = parsed.User.Password()
	}

	port := parsed.Port()
	if port == "" {
		port = "5432"
	}

	retries := 5
	if r := parsed.Query().Get("retries"); r != "" {
		if n, err := strconv.Atoi(r); err == nil {
			retries = n
		}
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsed.Path, "/"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsed.Hostname(),
		Port:     port,
		Retries:  retries,
	}, nil
}

// ConnectToDB opens and migrates the store described by cnf, making up
// to cnf.Retries dial attempts (at least one) with a linear backoff. The
// returned *gorm.DB has the full ledger schema in place; opening an
// already-migrated store is a no-op.
func ConnectToDB(cnf DatabaseConfig, logger Logger) (*gorm.DB, error) {
	var dial func() (*gorm.DB, error)
	switch cnf.Driver {
	case "postgres":
		dial = func() (*gorm.DB, error) { return openPostgres(cnf) }
	case "sqlite", "":
		dial = func() (*gorm.DB, error) { return openSqlite(cnf) }
	default:
		return nil, fmt.Errorf("database: unsupported driver: %s", cnf.Driver)
	}

	attempts := cnf.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := dial()
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("database connection attempt failed", "driver", cnf.Driver, "attempt", attempt, "of", attempts, "error", err)
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
	}
	return nil, fmt.Errorf("database: failed to connect after %d attempt(s): %w", attempts, lastErr)
}

func openPostgres(cnf DatabaseConfig) (*gorm.DB, error) {
	dsn := postgresDSN(cnf)

	if err := migratePostgres(dsn); err != nil {
		return nil, fmt.Errorf("database: failed to apply postgres migrations: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("database: failed to open postgres: %w", err)
	}
	return db, nil
}

func openSqlite(cnf DatabaseConfig) (*gorm.DB, error) {
	// _fk enables foreign-key enforcement; WAL keeps the journal
	// durability-friendly for a file-backed store.
	dsn := "file::memory:?cache=shared&_fk=1"
	if cnf.Name != "" {
		dsn = fmt.Sprintf("file:%s?cache=shared&_fk=1&_journal_mode=WAL", cnf.Name)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("database: failed to open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&LedgerEvent{}, &Balance{}, &Receipt{}, &Account{}); err != nil {
		return nil, fmt.Errorf("database: failed to migrate sqlite: %w", err)
	}
	return db, nil
}

func postgresDSN(cnf DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
}

func migratePostgres(dsn string) error {
	db, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	return goose.Up(db, "config/migrations/postgres")
}

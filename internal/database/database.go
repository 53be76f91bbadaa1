package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Options selects the driver and data source for Open.
type Options struct {
	Driver Driver
	DSN    string
}

// DB wraps the process-wide connection pool
type DB struct {
	*sqlx.DB
	driver Driver
	dsn    string
	mu     sync.RWMutex
}

// New opens a SQLite database at path
func New(path string) (*DB, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
}

// Open creates the connection pool for the configured driver and verifies it with a ping.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if !driver.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver.SQLDriverName(), driver.connectionString(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// SQLite with WAL mode supports concurrent reads but serializes writes
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	case DriverPostgres:
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(time.Hour)
	}

	log.Debug().Str("driver", string(driver)).Msg("Database connection established")

	return &DB{
		DB:     conn,
		driver: driver,
		dsn:    opts.DSN,
	}, nil
}

// Driver returns the dialect in use
func (db *DB) Driver() Driver {
	return db.driver
}

// Path returns the SQLite file path, or an empty string for server databases
func (db *DB) Path() string {
	if db.driver != DriverSQLite {
		return ""
	}
	return db.dsn
}

// IsEmpty reports whether the statistics tables hold no matches yet
func (db *DB) IsEmpty() (bool, error) {
	var count int
	if err := db.queryRow("SELECT COUNT(*) FROM matches").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count matches: %w", err)
	}
	return count == 0, nil
}

// Transaction wraps a function in a database transaction
func (db *DB) Transaction(fn func(*sqlx.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ConnectionInfo holds non-secret facts about the connection for display
type ConnectionInfo struct {
	Driver   string
	Database string
	User     string
	Host     string
}

// Describe returns the connection facts shown to administrators. Passwords are never included.
func (db *DB) Describe() ConnectionInfo {
	info := ConnectionInfo{Driver: string(db.driver)}
	if db.driver == DriverSQLite {
		info.Database = db.dsn
		info.Host = "local file"
		return info
	}
	info.Database, info.User, info.Host = parsePostgresDSN(db.dsn)
	return info
}

// parsePostgresDSN extracts database, user and host from either a URL or a key=value DSN.
func parsePostgresDSN(dsn string) (database, user, host string) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", ""
		}
		return strings.TrimPrefix(u.Path, "/"), u.User.Username(), u.Host
	}
	for _, field := range strings.Fields(dsn) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "dbname":
			database = value
		case "user":
			user = value
		case "host":
			host = value
		}
	}
	return database, user, host
}

package database

import (
	"fmt"
	"strings"
)

// Driver names a supported SQL dialect
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps a user-supplied name onto a Driver
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q (want sqlite or postgres)", name)
}

// Valid reports whether d is a known dialect
func (d Driver) Valid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

// SQLDriverName is the database/sql driver registered for the dialect
func (d Driver) SQLDriverName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

// YearOf returns an integer-valued SQL expression for the calendar year of a date column.
// column must be a trusted identifier, never user input.
func (d Driver) YearOf(column string) string {
	if d == DriverPostgres {
		return fmt.Sprintf("CAST(EXTRACT(YEAR FROM %s) AS INTEGER)", column)
	}
	return fmt.Sprintf("CAST(strftime('%%Y', %s) AS INTEGER)", column)
}

// gooseDialect is the goose dialect name for migrations
func (d Driver) gooseDialect() string {
	if d == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// migrationsDir is the embedded directory holding the dialect's migrations
func (d Driver) migrationsDir() string {
	return "migrations/" + string(d)
}

func (d Driver) connectionString(dsn string) string {
	if d != DriverSQLite {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

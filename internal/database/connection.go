package database

import (
	"context"
	"database/sql"
)

// All statements in this package are written with ? placeholders and rebound here.

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.DB.Exec(db.Rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.DB.Query(db.Rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.DB.QueryRow(db.Rebind(query), args...)
}

// SelectContext scans all rows of a query into dest, rebinding placeholders for the dialect.
func (db *DB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return db.DB.SelectContext(ctx, dest, db.Rebind(query), args...)
}


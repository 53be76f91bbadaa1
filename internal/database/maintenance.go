package database

import "fmt"

// Optimize refreshes planner statistics: PRAGMA optimize on SQLite, ANALYZE on Postgres.
func (db *DB) Optimize() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	stmt := "PRAGMA optimize"
	if db.driver == DriverPostgres {
		stmt = "ANALYZE"
	}
	if _, err := db.exec(stmt); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}

	return nil
}

package database

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed seed/demo.sql
var demoSQL string

// ErrAlreadySeeded is returned by SeedDemo when the statistics tables already hold matches
var ErrAlreadySeeded = errors.New("statistics tables are not empty")

// SeedDemo loads the embedded demo dataset into empty statistics tables.
func (db *DB) SeedDemo() error {
	empty, err := db.IsEmpty()
	if err != nil {
		return err
	}
	if !empty {
		return ErrAlreadySeeded
	}

	statements := splitSQLStatements(demoSQL)
	err = db.Transaction(func(tx *sqlx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("seed statement %d failed: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("statements", len(statements)).Msg("Demo dataset loaded")
	return nil
}

// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Registry tracks snapshot identity (dataset, stage, date) and the explicit
// "current" pointer, replacing filename-sort guessing.
type Registry interface {
	// Register records a snapshot and marks it current for (dataset, stage),
	// returning the paths of the rows it superseded.
	Register(dataset, stage string, date time.Time, path string, rows int) ([]string, error)
	// Current returns the current snapshot path for (dataset, stage).
	// ok is false when none was ever registered.
	Current(dataset, stage string) (path string, ok bool, err error)
}

// SQLRegistry is the DuckDB-backed Registry.
type SQLRegistry struct {
	db *sql.DB
}

// NewSQLRegistry creates the schema if needed.
func NewSQLRegistry(db *sql.DB) (*SQLRegistry, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			dataset   VARCHAR NOT NULL,
			stage     VARCHAR NOT NULL,
			snap_date DATE    NOT NULL,
			path      VARCHAR NOT NULL,
			row_count INTEGER NOT NULL,
			current   BOOLEAN NOT NULL,
			PRIMARY KEY (dataset, stage, snap_date)
		)`)
	if err != nil {
		return nil, fmt.Errorf("creating snapshots table: %w", err)
	}

	return &SQLRegistry{db: db}, nil
}

// Register implements Registry.
func (r *SQLRegistry) Register(dataset, stage string, date time.Time, path string, rows int) ([]string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning registry transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	day := date.Format("2006-01-02")

	superseded, err := collectStrings(tx.Query(
		`SELECT path FROM snapshots
		 WHERE dataset = ? AND stage = ? AND snap_date <> ?`,
		dataset, stage, day,
	))
	if err != nil {
		return nil, fmt.Errorf("listing superseded snapshots: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM snapshots WHERE dataset = ? AND stage = ?`,
		dataset, stage,
	); err != nil {
		return nil, fmt.Errorf("clearing old registry rows: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO snapshots (dataset, stage, snap_date, path, row_count, current)
		 VALUES (?, ?, ?, ?, ?, TRUE)`,
		dataset, stage, day, path, rows,
	); err != nil {
		return nil, fmt.Errorf("registering snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registry transaction: %w", err)
	}

	return superseded, nil
}

// Current implements Registry.
func (r *SQLRegistry) Current(dataset, stage string) (string, bool, error) {
	var path string

	err := r.db.QueryRow(
		`SELECT path FROM snapshots
		 WHERE dataset = ? AND stage = ? AND current
		 ORDER BY snap_date DESC LIMIT 1`,
		dataset, stage,
	).Scan(&path)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("querying current snapshot: %w", err)
	}

	return path, true, nil
}

func collectStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var ret []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}

		ret = append(ret, s)
	}

	return ret, rows.Err()
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package sqlconn adapts a database/sql.DB to migrate.Conn, giving the
// engine a driver-agnostic way to talk to Postgres and SQLite without
// either database appearing in the migrate package's import graph.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brkmustu/parsql/migrate"
)

// Conn wraps a *sql.DB as a migrate.Conn.
// Its zero value is not usable; construct one with Open or New.
type Conn struct {
	db   *sql.DB
	kind migrate.DatabaseKind
	tx   *sql.Tx
}

// New wraps an already-open *sql.DB. kind selects the bookkeeping DDL
// dialect Store.Init uses; pass migrate.Other for drivers with no
// dedicated dialect.
func New(db *sql.DB, kind migrate.DatabaseKind) *Conn {
	return &Conn{db: db, kind: kind}
}

// DB returns the underlying *sql.DB, e.g. for callers that want to run
// their own diagnostics alongside the migration engine.
func (c *Conn) DB() *sql.DB { return c.db }

// Close closes the underlying *sql.DB.
func (c *Conn) Close() error { return c.db.Close() }

func (c *Conn) DatabaseKind() migrate.DatabaseKind { return c.kind }

func (c *Conn) execer() interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

func (c *Conn) Execute(ctx context.Context, stmt string) error {
	_, err := c.execer().ExecContext(ctx, stmt)
	return err
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("sqlconn: transaction already in progress")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return fmt.Errorf("sqlconn: no transaction in progress")
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

func (c *Conn) QueryApplied(ctx context.Context, table string) ([]migrate.AppliedRecord, error) {
	rows, err := c.execer().QueryContext(ctx, fmt.Sprintf(
		"SELECT version, name, applied_at, checksum, execution_time_ms FROM %s ORDER BY version ASC", table,
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []migrate.AppliedRecord
	for rows.Next() {
		var rec migrate.AppliedRecord
		var checksum sql.NullString
		var execMS sql.NullInt64
		if err := rows.Scan(&rec.Version, &rec.Name, &rec.AppliedAt, &checksum, &execMS); err != nil {
			return nil, err
		}
		rec.Checksum = checksum.String
		rec.ExecutionTimeMS = execMS.Int64
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (c *Conn) UpsertApplied(ctx context.Context, table string, rec migrate.AppliedRecord) error {
	_, err := c.execer().ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (version, name, checksum, execution_time_ms) VALUES ($1, $2, $3, $4)
ON CONFLICT (version) DO UPDATE SET
	name = excluded.name,
	checksum = excluded.checksum,
	execution_time_ms = excluded.execution_time_ms`, table),
		rec.Version, rec.Name, rec.Checksum, rec.ExecutionTimeMS,
	)
	return err
}

func (c *Conn) DeleteApplied(ctx context.Context, table string, version migrate.Version) error {
	_, err := c.execer().ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", table), version)
	return err
}

var _ migrate.Conn = (*Conn)(nil)

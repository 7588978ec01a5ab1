// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"fmt"
	"time"
)

// AppliedRecord is a row of the bookkeeping relation.
type AppliedRecord struct {
	Version         Version
	Name            string
	AppliedAt       time.Time
	Checksum        string // empty for a record with no checksum recorded
	ExecutionTimeMS int64
}

// Store creates and queries the bookkeeping relation through a Conn,
// translating between on-disk rows and AppliedRecord.
type Store struct {
	cfg Config
}

// NewStore returns a Store bound to cfg's table/column naming.
func NewStore(cfg Config) *Store { return &Store{cfg: cfg} }

// Init issues a CREATE TABLE IF NOT EXISTS for the configured table name,
// dialect-selected from conn.DatabaseKind(). Drivers that are neither
// Postgres nor SQLite fall back to the Postgres dialect; if the driver
// rejects it, Init returns a BookkeepingError.
func (s *Store) Init(ctx context.Context, conn Conn) error {
	ddl := s.ddl(conn.DatabaseKind())
	if err := conn.Execute(ctx, ddl); err != nil {
		return &BookkeepingError{Kind: SetupFailed, Op: "execute", Cause: wrapDriver("execute", err)}
	}
	return nil
}

// ddl returns the CREATE TABLE statement for kind, per §6's
// interchange-compatible shape.
func (s *Store) ddl(kind DatabaseKind) string {
	c := s.cfg
	switch kind {
	case SQLite:
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
	%s INTEGER NOT NULL PRIMARY KEY,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')),
	%s TEXT,
	%s INTEGER
)`,
			c.TableName, c.VersionColumn, c.NameColumn, c.AppliedAtColumn, c.ChecksumColumn, c.ExecutionTimeColumn,
		)
	default: // Postgres and Other fall back to the Postgres dialect.
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT NOT NULL PRIMARY KEY,
	%s TEXT NOT NULL,
	%s TIMESTAMP NOT NULL DEFAULT now(),
	%s TEXT,
	%s BIGINT
)`,
			c.TableName, c.VersionColumn, c.NameColumn, c.AppliedAtColumn, c.ChecksumColumn, c.ExecutionTimeColumn,
		)
	}
}

// Applied returns every bookkeeping row, ordered ascending by version.
func (s *Store) Applied(ctx context.Context, conn Conn) ([]AppliedRecord, error) {
	recs, err := conn.QueryApplied(ctx, s.cfg.TableName)
	if err != nil {
		return nil, &BookkeepingError{Kind: DriverFailed, Op: "query_applied", Cause: wrapDriver("query_applied", err)}
	}
	return recs, nil
}

// Upsert inserts or updates a single bookkeeping row, keyed on Version.
func (s *Store) Upsert(ctx context.Context, conn Conn, rec AppliedRecord) error {
	if err := conn.UpsertApplied(ctx, s.cfg.TableName, rec); err != nil {
		return &BookkeepingError{Kind: DriverFailed, Op: "upsert_applied", Cause: wrapDriver("upsert_applied", err)}
	}
	return nil
}

// Delete removes the bookkeeping row for version, if any.
func (s *Store) Delete(ctx context.Context, conn Conn, version Version) error {
	if err := conn.DeleteApplied(ctx, s.cfg.TableName, version); err != nil {
		return &BookkeepingError{Kind: DriverFailed, Op: "delete_applied", Cause: wrapDriver("delete_applied", err)}
	}
	return nil
}

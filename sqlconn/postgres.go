// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/brkmustu/parsql/migrate"
)

// OpenPostgres opens dsn through the pgx stdlib driver and wraps it as a
// Conn dialected for Postgres bookkeeping DDL.
func OpenPostgres(ctx context.Context, dsn string) (*Conn, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlconn: ping postgres: %w", err)
	}
	return New(db, migrate.Postgres), nil
}

// AdvisoryLock acquires a Postgres session-level advisory lock keyed by
// name, hashed with FNV-32 exactly as the bookkeeping-external lock the
// engine's §5 contract requires. The lock is taken on a dedicated
// *sql.Conn drawn from db, which stays checked out until the returned
// func runs, since Postgres advisory locks are scoped to the session that
// took them. The returned func releases the lock and that connection;
// callers must invoke it exactly once.
//
// Unlike the engine's own Conn.Begin/Commit, this lock is held outside
// any migration transaction — it coordinates multiple processes racing
// to run migrations concurrently, not statements within one run.
func AdvisoryLock(ctx context.Context, db *sql.DB, name string, timeout time.Duration) (unlock func(context.Context) error, err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: advisory lock: acquire conn: %w", err)
	}
	h := fnv.New32()
	h.Write([]byte(name))
	id := h.Sum32()
	deadline := time.Now().Add(timeout)
	for {
		var acquired sql.NullBool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlconn: advisory lock: %w", err)
		}
		if acquired.Valid && acquired.Bool {
			break
		}
		if timeout > 0 && time.Now().After(deadline) {
			conn.Close()
			return nil, fmt.Errorf("sqlconn: advisory lock %q: timed out after %s", name, timeout)
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	return func(ctx context.Context) error {
		defer conn.Close()
		var released sql.NullBool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", id).Scan(&released); err != nil {
			return fmt.Errorf("sqlconn: advisory unlock: %w", err)
		}
		if !released.Valid || !released.Bool {
			return fmt.Errorf("sqlconn: advisory unlock %q: lock was not held", name)
		}
		return nil
	}, nil
}

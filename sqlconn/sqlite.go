// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlconn

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/brkmustu/parsql/migrate"
)

// OpenSQLite opens path (a file path, or ":memory:") through the
// cgo-free modernc.org/sqlite driver and wraps it as a Conn dialected for
// SQLite bookkeeping DDL. SQLite allows at most one writer at a time, so
// the pool is capped at a single connection — a second Begin would
// otherwise block forever waiting on a connection the first transaction
// is holding.
func OpenSQLite(ctx context.Context, path string) (*Conn, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlconn: ping sqlite: %w", err)
	}
	return New(db, migrate.SQLite), nil
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"fmt"
)

type (
	// DatabaseKind identifies the dialect family a Conn talks to, used
	// exclusively to pick the bookkeeping-table DDL in Store.Init.
	DatabaseKind string

	// Conn is the narrow capability a driver must implement for the engine
	// to discover, plan and execute migrations against it. A Conn is not
	// required to be safe for concurrent use; the engine never calls it
	// from more than one goroutine at a time (see the concurrency model).
	Conn interface {
		// Execute runs one statement. No result rows are expected.
		Execute(ctx context.Context, stmt string) error
		// Begin starts a transaction. Calling Begin twice without an
		// intervening Commit or Rollback is an error.
		Begin(ctx context.Context) error
		// Commit finalizes the current transaction.
		Commit(ctx context.Context) error
		// Rollback discards the current transaction. It MUST be safe to
		// call after a failed Execute, and safe to call with no
		// transaction in flight (a no-op in that case).
		Rollback(ctx context.Context) error
		// QueryApplied returns every AppliedRecord in the bookkeeping
		// table, ordered ascending by version.
		QueryApplied(ctx context.Context, table string) ([]AppliedRecord, error)
		// UpsertApplied inserts or updates (keyed on Version) a single
		// bookkeeping row.
		UpsertApplied(ctx context.Context, table string, rec AppliedRecord) error
		// DeleteApplied removes the bookkeeping row for version, if any.
		DeleteApplied(ctx context.Context, table string, version Version) error
		// DatabaseKind reports the dialect family, used to select DDL.
		DatabaseKind() DatabaseKind
	}
)

// Known database kinds. Other is used for any driver the engine doesn't
// have dialect-specific DDL for; such drivers fall back to the Postgres
// dialect (see Store.Init).
const (
	Postgres DatabaseKind = "postgres"
	SQLite   DatabaseKind = "sqlite"
	Other    DatabaseKind = "other"
)

// DriverError wraps an error returned by a Conn, tagging which operation
// failed. Callers can errors.As into it to branch on Op without string
// matching the underlying driver's message.
type DriverError struct {
	Op  string // "execute", "begin", "commit", "query_applied", "upsert_applied", "delete_applied"
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("migrate: %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// wrapDriver wraps err (if non-nil) as a *DriverError tagged with op.
func wrapDriver(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}

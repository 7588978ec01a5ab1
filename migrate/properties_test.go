// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate_test

import (
	"context"
	"testing"

	"github.com/brkmustu/parsql/migrate"
	"github.com/stretchr/testify/require"
)

// Testable Property: running RunPending to completion twice in a row is a
// no-op the second time — no steps are planned or applied.
func TestProperty_RunPendingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	set, err := migrate.NewSet(unitAB())
	require.NoError(t, err)
	conn := newFakeConn(migrate.Postgres)
	cfg := migrate.NewConfig()

	first, err := migrate.Run(ctx, set, conn, migrate.RunPendingRequest(0), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.Summarize().Applied)

	second, err := migrate.Run(ctx, set, conn, migrate.RunPendingRequest(0), cfg, nil)
	require.NoError(t, err)
	require.Empty(t, second.Steps)

	applied, err := conn.QueryApplied(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Len(t, applied, 2)
}

// Testable Property: a dry-run request never touches the database — the
// plan is computed and reported but every step is Skipped, and the
// bookkeeping relation is unchanged (beyond Init's CREATE TABLE IF NOT
// EXISTS, which a dry run still issues).
func TestProperty_DryRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	set, err := migrate.NewSet(unitAB())
	require.NoError(t, err)
	conn := newFakeConn(migrate.Postgres)
	cfg := migrate.NewConfig()

	report, err := migrate.Run(ctx, set, conn, migrate.DryRunRequest(migrate.RunPendingRequest(0)), cfg, nil)
	require.NoError(t, err)
	require.Len(t, report.Steps, 2)
	for _, step := range report.Steps {
		require.Equal(t, migrate.Skipped, step.Result)
		require.Equal(t, migrate.SkippedDryRun, step.SkipReason)
	}

	applied, err := conn.QueryApplied(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Empty(t, applied)
	require.False(t, conn.schema["a"])
	require.False(t, conn.schema["b"])
}

// Testable Property: per-unit transaction granularity stops at the first
// failing unit, leaving prior units committed and later units untouched.
func TestProperty_PerUnitAtomicityStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	units := []*migrate.Unit{
		{Version: 1, Name: "a", UpBody: "CREATE TABLE a(x INT);", Checksum: migrate.Checksum("CREATE TABLE a(x INT);")},
		{Version: 2, Name: "b", UpBody: "FAIL", Checksum: migrate.Checksum("FAIL")},
		{Version: 3, Name: "c", UpBody: "CREATE TABLE c(x INT);", Checksum: migrate.Checksum("CREATE TABLE c(x INT);")},
	}
	set, err := migrate.NewSet(units)
	require.NoError(t, err)
	conn := newFakeConn(migrate.Postgres)
	cfg := migrate.NewConfig(migrate.WithTransactionPerUnit(true))

	report, err := migrate.Run(ctx, set, conn, migrate.RunPendingRequest(0), cfg, nil)
	require.NoError(t, err)
	require.Len(t, report.Steps, 2)
	require.Equal(t, migrate.Applied, report.Steps[0].Result)
	require.Equal(t, migrate.Failed, report.Steps[1].Result)

	require.True(t, conn.schema["a"])
	require.False(t, conn.schema["c"])

	applied, err := conn.QueryApplied(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, migrate.Version(1), applied[0].Version)
}

// Testable Property: batch transaction granularity rolls everything back
// on any unit's failure, including units that already applied cleanly.
func TestProperty_BatchAtomicityRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	units := []*migrate.Unit{
		{Version: 1, Name: "a", UpBody: "CREATE TABLE a(x INT);", Checksum: migrate.Checksum("CREATE TABLE a(x INT);")},
		{Version: 2, Name: "b", UpBody: "FAIL", Checksum: migrate.Checksum("FAIL")},
	}
	set, err := migrate.NewSet(units)
	require.NoError(t, err)
	conn := newFakeConn(migrate.Postgres)
	cfg := migrate.NewConfig(migrate.WithTransactionPerUnit(false))

	report, err := migrate.Run(ctx, set, conn, migrate.RunPendingRequest(0), cfg, nil)
	require.NoError(t, err)
	require.Len(t, report.Steps, 2)
	require.Equal(t, migrate.Failed, report.Steps[0].Result)
	require.Equal(t, migrate.Failed, report.Steps[1].Result)

	require.False(t, conn.schema["a"])
	applied, err := conn.QueryApplied(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Empty(t, applied)
}

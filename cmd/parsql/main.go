// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Command parsql runs the migration engine against a live database. It
// is a thin wrapper: the real logic lives in migrate and sqlconn, this
// file only parses flags/environment and formats output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/brkmustu/parsql/migrate"
	"github.com/brkmustu/parsql/sqlconn"
)

const (
	envDatabaseURL = "DATABASE_URL"
	envMigrations  = "PARSQL_MIGRATIONS_DIR"
	envTableName   = "PARSQL_TABLE_NAME"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "parsql:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: parsql <run|rollback|status|validate> [flags]")
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dsn := fs.String("database-url", os.Getenv(envDatabaseURL), "database connection URL, e.g. postgres://... or sqlite://./path.db (env "+envDatabaseURL+")")
	dir := fs.String("dir", envOr(envMigrations, "migrations"), "migration files directory (env "+envMigrations+")")
	table := fs.String("table", envOr(envTableName, "schema_migrations"), "bookkeeping table name (env "+envTableName+")")
	target := fs.Int64("to", 0, "target version (rollback floor, or run ceiling)")
	dryRun := fs.Bool("dry-run", false, "compute the plan without applying it")
	outOfOrder := fs.Bool("allow-out-of-order", false, "allow late-arriving versions below the max applied version")
	batch := fs.Bool("batch", false, "use one transaction for the whole run instead of one per unit")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *dsn == "" {
		return fmt.Errorf("-database-url (or %s) is required", envDatabaseURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	set, ignored, err := migrate.Discover(*dir)
	if err != nil {
		return fmt.Errorf("discover %q: %w", *dir, err)
	}
	for _, name := range ignored {
		fmt.Fprintf(os.Stderr, "parsql: ignored %s\n", name)
	}

	conn, err := sqlconn.Open(ctx, *dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg := migrate.NewConfig(
		migrate.WithTableName(*table),
		migrate.WithAllowOutOfOrder(*outOfOrder),
		migrate.WithTransactionPerUnit(!*batch),
	)

	switch cmd {
	case "run":
		return doRun(ctx, set, conn, migrate.RunPendingRequest(migrate.Version(*target)), cfg, *dryRun)
	case "rollback":
		return doRun(ctx, set, conn, migrate.RollbackToRequest(migrate.Version(*target)), cfg, *dryRun)
	case "status":
		return doStatus(ctx, set, conn, cfg)
	case "validate":
		return doValidate(ctx, set, conn, cfg)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func doRun(ctx context.Context, set *migrate.Set, conn *sqlconn.Conn, req migrate.Request, cfg migrate.Config, dryRun bool) error {
	if dryRun {
		req = migrate.DryRunRequest(req)
	}
	report, err := migrate.Run(ctx, set, conn, req, cfg, consoleSink{})
	if err != nil {
		return err
	}
	sum := report.Summarize()
	fmt.Printf("applied=%d skipped=%d failed=%d run=%s\n", sum.Applied, sum.Skipped, sum.Failed, report.RunID)
	if sum.Failed > 0 {
		return fmt.Errorf("%d step(s) failed", sum.Failed)
	}
	return nil
}

func doStatus(ctx context.Context, set *migrate.Set, conn *sqlconn.Conn, cfg migrate.Config) error {
	statuses, err := migrate.Status(ctx, set, conn, cfg)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Printf("%d\t%s\t%s\n", s.Version, s.Name, state)
	}
	return nil
}

func doValidate(ctx context.Context, set *migrate.Set, conn *sqlconn.Conn, cfg migrate.Config) error {
	report, err := migrate.Validate(ctx, set, conn, cfg)
	if err != nil {
		return err
	}
	for _, issue := range report.Issues {
		fmt.Printf("%s\tversion=%d\t%s\n", issue.Severity, issue.Version, issue.Message)
	}
	if report.HasErrors() {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// consoleSink prints one line per step outcome as it happens, giving a
// long-running batch run visible progress instead of a single summary at
// the end.
type consoleSink struct{}

func (consoleSink) Log(e migrate.LogEntry) {
	switch e := e.(type) {
	case migrate.LogStepStarted:
		fmt.Printf("-> %d %s %s\n", e.Version, e.Name, e.Direction)
	case migrate.LogStepOutcome:
		o := e.Outcome
		if o.Err != nil {
			fmt.Printf("   %d %s failed after %dms: %v\n", o.Version, o.Name, o.ElapsedMS, o.Err)
			return
		}
		fmt.Printf("   %d %s %s (%dms)\n", o.Version, o.Name, resultLabel(o.Result), o.ElapsedMS)
	}
}

func resultLabel(r migrate.ResultKind) string {
	switch r {
	case migrate.Applied:
		return "ok"
	case migrate.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

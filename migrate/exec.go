// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Executor drives a Plan against a Conn under the configured transaction
// policy, producing a Report of per-step outcomes.
type Executor struct {
	conn  Conn
	store *Store
	cfg   Config
	sink  Sink
}

// ExecutorOption configures an Executor under construction.
type ExecutorOption func(*Executor)

// WithSink sets the observability sink of an Executor. The default is
// NopSink.
func WithSink(sink Sink) ExecutorOption {
	return func(e *Executor) { e.sink = sink }
}

// NewExecutor returns an Executor bound to conn and cfg.
func NewExecutor(conn Conn, cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{conn: conn, store: NewStore(cfg), cfg: cfg, sink: NopSink{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run computes the Plan for req (creating the bookkeeping table on first
// use) and executes it, returning a Report. A Report is returned even
// when a step fails — the caller distinguishes a fully-successful report
// from a partial one via Summarize.
func (e *Executor) Run(ctx context.Context, set *Set, req Request) (*Report, error) {
	if err := e.store.Init(ctx, e.conn); err != nil {
		return nil, err
	}
	plan, err := PlanFor(ctx, set, e.conn, e.store, req, e.cfg)
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: uuid.New(), Request: req}
	if req.DryRun {
		for _, step := range plan.Steps {
			e.sink.Log(LogStepStarted{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction})
			outcome := StepOutcome{
				Version:    step.Unit.Version,
				Name:       step.Unit.Name,
				Direction:  step.Direction,
				Result:     Skipped,
				SkipReason: SkippedDryRun,
			}
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
		}
		return report, nil
	}
	if e.cfg.TransactionPerUnit {
		e.runPerStep(ctx, plan, report)
	} else {
		e.runBatch(ctx, plan, report)
	}
	return report, nil
}

func (e *Executor) runPerStep(ctx context.Context, plan *Plan, report *Report) {
	for _, step := range plan.Steps {
		e.sink.Log(LogStepStarted{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction})
		start := time.Now()
		outcome := StepOutcome{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction}
		if err := e.conn.Begin(ctx); err != nil {
			outcome.Result, outcome.Err = Failed, &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: wrapDriver("begin", err)}
			outcome.ElapsedMS = elapsedMS(start)
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
			return
		}
		if err := e.applyStep(ctx, step, start); err != nil {
			_ = e.conn.Rollback(ctx)
			outcome.Result, outcome.Err = Failed, err
			outcome.ElapsedMS = elapsedMS(start)
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
			return
		}
		if err := e.conn.Commit(ctx); err != nil {
			outcome.Result, outcome.Err = Failed, &ExecutionError{Kind: CommitFailed, Version: step.Unit.Version, Cause: wrapDriver("commit", err)}
			outcome.ElapsedMS = elapsedMS(start)
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
			return
		}
		outcome.Result = Applied
		outcome.ElapsedMS = elapsedMS(start)
		report.Steps = append(report.Steps, outcome)
		e.sink.Log(LogStepOutcome{Outcome: outcome})
	}
}

func (e *Executor) runBatch(ctx context.Context, plan *Plan, report *Report) {
	if len(plan.Steps) == 0 {
		return
	}
	start := time.Now()
	if err := e.conn.Begin(ctx); err != nil {
		for _, step := range plan.Steps {
			report.Steps = append(report.Steps, StepOutcome{
				Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction,
				Result: Failed,
				Err:    &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: wrapDriver("begin", err)},
			})
		}
		return
	}
	failedAt := -1
	var failErr error
	for i, step := range plan.Steps {
		e.sink.Log(LogStepStarted{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction})
		if err := e.applyStep(ctx, step, start); err != nil {
			failedAt, failErr = i, err
			break
		}
	}
	if failedAt >= 0 {
		_ = e.conn.Rollback(ctx)
		elapsed := elapsedMS(start)
		for i, step := range plan.Steps {
			outcome := StepOutcome{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction, Result: Failed, ElapsedMS: elapsed}
			if i == failedAt {
				outcome.Err = failErr
			} else {
				outcome.Err = &ExecutionError{Kind: AbortedByBatch, Version: step.Unit.Version}
			}
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
		}
		return
	}
	if err := e.conn.Commit(ctx); err != nil {
		elapsed := elapsedMS(start)
		for i, step := range plan.Steps {
			outcome := StepOutcome{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction, Result: Failed, ElapsedMS: elapsed}
			if i == len(plan.Steps)-1 {
				outcome.Err = &ExecutionError{Kind: CommitFailed, Version: step.Unit.Version, Cause: wrapDriver("commit", err)}
			} else {
				outcome.Err = &ExecutionError{Kind: AbortedByBatch, Version: step.Unit.Version}
			}
			report.Steps = append(report.Steps, outcome)
			e.sink.Log(LogStepOutcome{Outcome: outcome})
		}
		return
	}
	elapsed := elapsedMS(start)
	for _, step := range plan.Steps {
		outcome := StepOutcome{Version: step.Unit.Version, Name: step.Unit.Name, Direction: step.Direction, Result: Applied, ElapsedMS: elapsed}
		report.Steps = append(report.Steps, outcome)
		e.sink.Log(LogStepOutcome{Outcome: outcome})
	}
}

// applyStep executes one step's body and updates the bookkeeping row. It
// does not begin or commit a transaction — callers manage that. start is
// the step's measurement start, used to stamp ExecutionTimeMS on the
// bookkeeping row itself (it necessarily excludes the final commit).
func (e *Executor) applyStep(ctx context.Context, step PlanStep, start time.Time) error {
	switch step.Direction {
	case Up:
		if err := e.runBody(ctx, step.Unit, true); err != nil {
			return &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: err}
		}
		rec := AppliedRecord{
			Version:         step.Unit.Version,
			Name:            step.Unit.Name,
			Checksum:        step.Unit.Checksum,
			ExecutionTimeMS: elapsedMS(start),
		}
		if err := e.store.Upsert(ctx, e.conn, rec); err != nil {
			return &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: err}
		}
		return nil
	default: // Down
		if !step.Irreversible {
			if err := e.runBody(ctx, step.Unit, false); err != nil {
				return &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: err}
			}
		}
		if err := e.store.Delete(ctx, e.conn, step.Unit.Version); err != nil {
			return &ExecutionError{Kind: StatementFailed, Version: step.Unit.Version, Cause: err}
		}
		return nil
	}
}

func (e *Executor) runBody(ctx context.Context, u *Unit, up bool) error {
	switch src := u.Source.(type) {
	case Programmatic:
		if up {
			return src.Up(ctx, e.conn)
		}
		if src.Down == nil {
			return nil
		}
		return src.Down(ctx, e.conn)
	default:
		body := u.UpBody
		if !up {
			body = u.DownBody
		}
		if body == "" {
			return nil
		}
		return wrapDriver("execute", e.conn.Execute(ctx, body))
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"fmt"
)

// Direction is the direction a PlanStep applies its unit in.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Request describes a requested transition. Exactly one of RunPending,
// RollbackTo is set, optionally wrapped by DryRun.
type Request struct {
	// Kind selects which request variant this is.
	Kind RequestKind
	// Target is the Version argument: the upper bound for RunPending (0
	// means unbounded), or the rollback floor for RollbackTo (Below
	// means roll back everything).
	Target Version
	// DryRun, if true, causes the Executor to compute the plan but skip
	// every step's Execute/Begin/upsert, reporting each step
	// Skipped(DryRun). The bookkeeping table is still created if missing.
	DryRun bool
}

// RequestKind enumerates the kinds of Request.
type RequestKind int

const (
	RunPending RequestKind = iota
	RollbackTo
)

// RunPendingRequest returns a Request applying every unit above the max
// applied version, up to and including target if target > 0.
func RunPendingRequest(target Version) Request {
	return Request{Kind: RunPending, Target: target}
}

// RollbackToRequest returns a Request reversing every applied record
// above target (Below to roll back everything).
func RollbackToRequest(target Version) Request {
	return Request{Kind: RollbackTo, Target: target}
}

// DryRunRequest wraps req so the resulting Plan is computed but never executed.
func DryRunRequest(req Request) Request {
	req.DryRun = true
	return req
}

// PlanStep is one step of a Plan: apply or reverse a single unit.
type PlanStep struct {
	Direction  Direction
	Unit       *Unit
	OutOfOrder bool // true if this step is a late-arriving gap unit (§4.5)
	Irreversible bool // true (RollbackTo only) if the applied record has no matching unit
}

// Plan is the ordered sequence of steps that satisfies a Request.
type Plan struct {
	Request Request
	Steps   []PlanStep
	// Warnings collects non-fatal checksum mismatches recorded when
	// Config.VerifyChecksums is false.
	Warnings []PlanError
}

// PlanTransition computes the ordered Plan for req given the discovered
// set and the database's applied records. PlanTransition is pure: it
// never touches a Conn.
func PlanTransition(set *Set, applied []AppliedRecord, req Request, cfg Config) (*Plan, error) {
	switch req.Kind {
	case RunPending:
		return planRunPending(set, applied, req, cfg)
	case RollbackTo:
		return planRollbackTo(set, applied, req, cfg)
	default:
		return nil, fmt.Errorf("migrate: plan: unknown request kind %d", req.Kind)
	}
}

func maxApplied(applied []AppliedRecord) Version {
	var max Version
	for _, r := range applied {
		if r.Version > max {
			max = r.Version
		}
	}
	return max
}

func appliedIndex(applied []AppliedRecord) map[Version]AppliedRecord {
	idx := make(map[Version]AppliedRecord, len(applied))
	for _, r := range applied {
		idx[r.Version] = r
	}
	return idx
}

func planRunPending(set *Set, applied []AppliedRecord, req Request, cfg Config) (*Plan, error) {
	byVersion := appliedIndex(applied)
	maxAppliedV := maxApplied(applied)
	plan := &Plan{Request: req}
	for _, u := range set.Units() {
		if _, ok := byVersion[u.Version]; ok {
			// Already applied: verify checksum, never re-plan it.
			rec := byVersion[u.Version]
			if mismatch := checksumMismatch(rec, u); mismatch != nil {
				if cfg.VerifyChecksums {
					return nil, mismatch
				}
				plan.Warnings = append(plan.Warnings, *mismatch)
			}
			continue
		}
		outOfOrder := u.Version <= maxAppliedV
		if outOfOrder && !cfg.AllowOutOfOrder {
			return nil, &PlanError{Kind: GapDetected, Version: u.Version}
		}
		if req.Target > 0 && u.Version > req.Target {
			continue
		}
		plan.Steps = append(plan.Steps, PlanStep{Direction: Up, Unit: u, OutOfOrder: outOfOrder})
	}
	// Any applied record with no matching unit is an error for forward requests.
	for _, r := range applied {
		if set.Lookup(r.Version) == nil {
			return nil, &PlanError{Kind: UnknownApplied, Version: r.Version}
		}
	}
	return plan, nil
}

func planRollbackTo(set *Set, applied []AppliedRecord, req Request, cfg Config) (*Plan, error) {
	plan := &Plan{Request: req}
	// Reverse order: highest version first.
	for i := len(applied) - 1; i >= 0; i-- {
		r := applied[i]
		if r.Version <= req.Target {
			continue
		}
		u := set.Lookup(r.Version)
		if u == nil {
			// Orphaned applied record: no unit to reverse, but the record
			// can still be deleted. Surfaced as Irreversible.
			plan.Steps = append(plan.Steps, PlanStep{
				Direction:    Down,
				Unit:         &Unit{Version: r.Version, Name: r.Name},
				Irreversible: true,
			})
			continue
		}
		if !u.Reversible() {
			return nil, &PlanError{Kind: IrreversibleApplied, Version: r.Version}
		}
		if mismatch := checksumMismatch(r, u); mismatch != nil {
			if cfg.VerifyChecksums {
				return nil, mismatch
			}
			plan.Warnings = append(plan.Warnings, *mismatch)
		}
		plan.Steps = append(plan.Steps, PlanStep{Direction: Down, Unit: u})
	}
	return plan, nil
}

// checksumMismatch returns a non-nil *PlanError if rec's checksum differs
// from u's current checksum. Programmatic units are compared best-effort:
// an empty recorded/current checksum never mismatches.
func checksumMismatch(rec AppliedRecord, u *Unit) *PlanError {
	if rec.Checksum == "" || u.Checksum == "" || rec.Checksum == u.Checksum {
		return nil
	}
	return &PlanError{Kind: ChecksumMismatch, Version: u.Version, Recorded: rec.Checksum, Current: u.Checksum}
}

// PlanFor computes the Plan for req against the live database behind conn,
// reading applied records through store. It is the public, Conn-aware
// counterpart of PlanTransition.
func PlanFor(ctx context.Context, set *Set, conn Conn, store *Store, req Request, cfg Config) (*Plan, error) {
	applied, err := store.Applied(ctx, conn)
	if err != nil {
		return nil, err
	}
	return PlanTransition(set, applied, req, cfg)
}

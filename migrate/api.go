// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import "context"

// UnitStatus reports one unit's applied state, as returned by Status.
type UnitStatus struct {
	Version     Version
	Name        string
	Applied     bool
	AppliedAt   *int64 // unix millis; nil if not applied
	ChecksumOK  *bool  // nil if not applied or checksum verification doesn't apply
}

// Status reports, for every unit in set, whether it has been applied and
// whether its recorded checksum still matches its current content.
func Status(ctx context.Context, set *Set, conn Conn, cfg Config) ([]UnitStatus, error) {
	store := NewStore(cfg)
	if err := store.Init(ctx, conn); err != nil {
		return nil, err
	}
	applied, err := store.Applied(ctx, conn)
	if err != nil {
		return nil, err
	}
	byVersion := appliedIndex(applied)
	out := make([]UnitStatus, 0, set.Len())
	for _, u := range set.Units() {
		st := UnitStatus{Version: u.Version, Name: u.Name}
		if rec, ok := byVersion[u.Version]; ok {
			st.Applied = true
			ms := rec.AppliedAt.UnixMilli()
			st.AppliedAt = &ms
			if rec.Checksum != "" && u.Checksum != "" {
				ok := rec.Checksum == u.Checksum
				st.ChecksumOK = &ok
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// PlanOp is the Conn-aware public counterpart of PlanTransition: it
// creates the bookkeeping table if missing, then plans req via PlanFor.
func PlanOp(ctx context.Context, set *Set, conn Conn, req Request, cfg Config) (*Plan, error) {
	store := NewStore(cfg)
	if err := store.Init(ctx, conn); err != nil {
		return nil, err
	}
	return PlanFor(ctx, set, conn, store, req, cfg)
}

// Run executes req against conn and returns a Report. It is the
// Conn-driving counterpart of Executor.Run, provided so callers that want
// the one-shot §6 operation table shape don't need to construct an
// Executor themselves.
func Run(ctx context.Context, set *Set, conn Conn, req Request, cfg Config, sink Sink) (*Report, error) {
	if sink == nil {
		sink = NopSink{}
	}
	ex := NewExecutor(conn, cfg, WithSink(sink))
	return ex.Run(ctx, set, req)
}

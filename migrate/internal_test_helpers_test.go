// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brkmustu/parsql/migrate"
)

// fakeConn is an in-memory migrate.Conn used to exercise the planner and
// executor without a real database. It understands a tiny vocabulary of
// "statements" so tests can provoke failures on demand: any statement
// containing the substring "FAIL" or "1/0" returns an error instead of
// applying.
type fakeConn struct {
	kind    migrate.DatabaseKind
	schema  map[string]bool // "tables" created by executed statements
	applied map[migrate.Version]migrate.AppliedRecord
	inTx    bool
	// txSchema/txApplied stage changes made during the current
	// transaction, so Rollback can discard them and Commit can fold them
	// into the committed state.
	txSchema  map[string]bool
	txApplied map[migrate.Version]migrate.AppliedRecord
	txDeleted map[migrate.Version]bool
}

func newFakeConn(kind migrate.DatabaseKind) *fakeConn {
	return &fakeConn{
		kind:    kind,
		schema:  map[string]bool{},
		applied: map[migrate.Version]migrate.AppliedRecord{},
	}
}

func (c *fakeConn) Execute(_ context.Context, stmt string) error {
	if strings.Contains(stmt, "FAIL") || strings.Contains(stmt, "1/0") {
		return fmt.Errorf("fake driver: statement rejected")
	}
	for _, word := range strings.Fields(stmt) {
		word = strings.Trim(word, "();,")
		_ = word
	}
	if strings.Contains(stmt, "CREATE TABLE") {
		name := tableNameFromCreate(stmt)
		if c.inTx {
			c.txSchema[name] = true
		} else {
			c.schema[name] = true
		}
	}
	if strings.Contains(stmt, "DROP TABLE") {
		name := tableNameFromDrop(stmt)
		if c.inTx {
			c.txSchema[name] = false
		} else {
			delete(c.schema, name)
		}
	}
	return nil
}

func tableNameFromCreate(stmt string) string {
	fields := strings.Fields(stmt)
	for i, f := range fields {
		if strings.EqualFold(f, "TABLE") && i+1 < len(fields) {
			return strings.Trim(strings.SplitN(fields[i+1], "(", 2)[0], "();,")
		}
	}
	return ""
}

func tableNameFromDrop(stmt string) string { return tableNameFromCreate(stmt) }

func (c *fakeConn) Begin(context.Context) error {
	if c.inTx {
		return fmt.Errorf("fake driver: already in a transaction")
	}
	c.inTx = true
	c.txSchema = map[string]bool{}
	c.txApplied = map[migrate.Version]migrate.AppliedRecord{}
	c.txDeleted = map[migrate.Version]bool{}
	return nil
}

func (c *fakeConn) Commit(context.Context) error {
	if !c.inTx {
		return fmt.Errorf("fake driver: no transaction in flight")
	}
	for name, present := range c.txSchema {
		if present {
			c.schema[name] = true
		} else {
			delete(c.schema, name)
		}
	}
	for v, rec := range c.txApplied {
		c.applied[v] = rec
	}
	for v := range c.txDeleted {
		delete(c.applied, v)
	}
	c.inTx = false
	return nil
}

func (c *fakeConn) Rollback(context.Context) error {
	c.inTx = false
	c.txSchema, c.txApplied, c.txDeleted = nil, nil, nil
	return nil
}

func (c *fakeConn) QueryApplied(_ context.Context, _ string) ([]migrate.AppliedRecord, error) {
	out := make([]migrate.AppliedRecord, 0, len(c.applied))
	for _, rec := range c.applied {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (c *fakeConn) UpsertApplied(_ context.Context, _ string, rec migrate.AppliedRecord) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now()
	}
	if c.inTx {
		c.txApplied[rec.Version] = rec
		delete(c.txDeleted, rec.Version)
	} else {
		c.applied[rec.Version] = rec
	}
	return nil
}

func (c *fakeConn) DeleteApplied(_ context.Context, _ string, version migrate.Version) error {
	if c.inTx {
		c.txDeleted[version] = true
		delete(c.txApplied, version)
	} else {
		delete(c.applied, version)
	}
	return nil
}

func (c *fakeConn) DatabaseKind() migrate.DatabaseKind { return c.kind }

var _ migrate.Conn = (*fakeConn)(nil)

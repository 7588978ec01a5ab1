// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"fmt"
	"strings"
)

// Severity classifies a ValidationIssue.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// ValidationIssue is a single finding reported by Validate.
type ValidationIssue struct {
	Severity Severity
	Message  string
	Version  Version // zero if not tied to a specific version
}

// ValidationReport is the ordered list of issues Validate found.
type ValidationReport struct {
	Issues []ValidationIssue
}

// HasErrors reports whether the report contains at least one Error-severity issue.
func (r *ValidationReport) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == Error {
			return true
		}
	}
	return false
}

func (r *ValidationReport) add(sev Severity, version Version, format string, args ...interface{}) {
	r.Issues = append(r.Issues, ValidationIssue{Severity: sev, Version: version, Message: fmt.Sprintf(format, args...)})
}

// Validate runs the offline structural checks on set, and — if conn is
// non-nil — the online checks that require a database (checksum
// verification, orphaned applied records, and the dense-sequence gap
// check when cfg.RequireDenseSequence is set).
//
// Discovery already rejects duplicate versions and up/down name
// mismatches outright (they can never reach a Set), so Validate focuses
// on checks that are legal to have in a Set but still worth flagging:
// case-insensitive name collisions and units declared reversible with an
// empty down body.
func Validate(ctx context.Context, set *Set, conn Conn, cfg Config) (*ValidationReport, error) {
	report := &ValidationReport{}
	validateNames(set, report)
	validatePartners(set, report)
	if conn != nil {
		store := NewStore(cfg)
		applied, err := store.Applied(ctx, conn)
		if err != nil {
			return nil, err
		}
		validateChecksums(set, applied, report)
		validateOrphans(set, applied, report)
		if cfg.RequireDenseSequence {
			validateDenseSequence(set, applied, report)
		}
	}
	return report, nil
}

func validateNames(set *Set, report *ValidationReport) {
	seen := make(map[string]Version)
	for _, u := range set.Units() {
		key := strings.ToLower(u.Name)
		if other, ok := seen[key]; ok {
			report.add(Error, u.Version, "name %q is reused by versions %d and %d", u.Name, other, u.Version)
			continue
		}
		seen[key] = u.Version
	}
}

func validatePartners(set *Set, report *ValidationReport) {
	for _, u := range set.Units() {
		if fb, ok := u.Source.(FileBacked); ok && fb.PathDown != "" && strings.TrimSpace(u.DownBody) == "" {
			report.add(Warning, u.Version, "down file %q is empty", fb.PathDown)
		}
	}
}

func validateChecksums(set *Set, applied []AppliedRecord, report *ValidationReport) {
	for _, rec := range applied {
		u := set.Lookup(rec.Version)
		if u == nil {
			continue // reported by validateOrphans
		}
		if mismatch := checksumMismatch(rec, u); mismatch != nil {
			report.add(Error, rec.Version, "checksum mismatch: recorded %s, current %s", mismatch.Recorded, mismatch.Current)
		}
	}
}

func validateOrphans(set *Set, applied []AppliedRecord, report *ValidationReport) {
	for _, rec := range applied {
		if set.Lookup(rec.Version) == nil {
			report.add(Warning, rec.Version, "applied version %d has no matching unit in the set", rec.Version)
		}
	}
}

func validateDenseSequence(set *Set, applied []AppliedRecord, report *ValidationReport) {
	maxAppliedV := maxApplied(applied)
	byVersion := appliedIndex(applied)
	for _, u := range set.Units() {
		if _, ok := byVersion[u.Version]; ok {
			continue
		}
		if u.Version <= maxAppliedV {
			report.add(Error, u.Version, "pending version %d is below the max applied version %d", u.Version, maxAppliedV)
		}
	}
}

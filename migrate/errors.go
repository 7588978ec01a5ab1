// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import "fmt"

// DiscoveryErrorKind enumerates the ways Discover can fail.
type DiscoveryErrorKind int

const (
	_ DiscoveryErrorKind = iota
	// BadFilename means a file had the <version>_<name>.<direction>.sql
	// shape but its version does not fit in an int64 or its name is not
	// valid after canonicalization. Files without that shape are not an
	// error; Discover returns them as ignored.
	BadFilename
	// DuplicateVersion means two up files share a version.
	DuplicateVersion
	// NamePartnerMismatch means an up/down pair shares a version but not a name.
	NamePartnerMismatch
	// UnreadableFile means the file could not be read from disk.
	UnreadableFile
)

func (k DiscoveryErrorKind) String() string {
	switch k {
	case BadFilename:
		return "bad_filename"
	case DuplicateVersion:
		return "duplicate_version"
	case NamePartnerMismatch:
		return "name_partner_mismatch"
	case UnreadableFile:
		return "unreadable_file"
	default:
		return "unknown"
	}
}

// DiscoveryError is returned by Discover.
type DiscoveryError struct {
	Kind    DiscoveryErrorKind
	Version Version // set for DuplicateVersion, NamePartnerMismatch
	Path    string  // set for BadFilename, UnreadableFile
	Cause   error   // set for UnreadableFile
}

func (e *DiscoveryError) Error() string {
	switch e.Kind {
	case DuplicateVersion:
		return fmt.Sprintf("migrate: discover: duplicate version %d", e.Version)
	case NamePartnerMismatch:
		return fmt.Sprintf("migrate: discover: up/down name mismatch at version %d", e.Version)
	case UnreadableFile:
		return fmt.Sprintf("migrate: discover: reading %q: %v", e.Path, e.Cause)
	case BadFilename:
		return fmt.Sprintf("migrate: discover: bad filename %q", e.Path)
	default:
		return "migrate: discover: unknown error"
	}
}

func (e *DiscoveryError) Unwrap() error { return e.Cause }

// BookkeepingErrorKind enumerates the ways Store can fail.
type BookkeepingErrorKind int

const (
	_ BookkeepingErrorKind = iota
	// SetupFailed means the CREATE TABLE IF NOT EXISTS failed.
	SetupFailed
	// DriverFailed wraps any other Conn failure encountered by Store.
	DriverFailed
)

// BookkeepingError is returned by Store methods.
type BookkeepingError struct {
	Kind  BookkeepingErrorKind
	Op    string
	Cause error
}

func (e *BookkeepingError) Error() string {
	if e.Kind == SetupFailed {
		return fmt.Sprintf("migrate: bookkeeping: setup failed: %v", e.Cause)
	}
	return fmt.Sprintf("migrate: bookkeeping: %s failed: %v", e.Op, e.Cause)
}

func (e *BookkeepingError) Unwrap() error { return e.Cause }

// PlanErrorKind enumerates the ways the Planner can refuse to produce a Plan.
type PlanErrorKind int

const (
	_ PlanErrorKind = iota
	// GapDetected means a unit below the max applied version is unapplied
	// and config.AllowOutOfOrder is false.
	GapDetected
	// UnknownApplied means an applied record has no matching unit in the
	// set, for a forward request.
	UnknownApplied
	// ChecksumMismatch means an applied unit's recorded checksum differs
	// from its current content checksum and config.VerifyChecksums is true.
	ChecksumMismatch
	// IrreversibleApplied means a RollbackTo request would need to reverse
	// a unit that has no down body. An orphaned applied record (no unit in
	// the set) is not an error: it is planned as an Irreversible step that
	// only deletes the record.
	IrreversibleApplied
)

// PlanError is returned by Plan.
type PlanError struct {
	Kind     PlanErrorKind
	Version  Version
	Recorded string // ChecksumMismatch only
	Current  string // ChecksumMismatch only
}

func (e *PlanError) Error() string {
	switch e.Kind {
	case GapDetected:
		return fmt.Sprintf("migrate: plan: gap detected: version %d is unapplied below the max applied version", e.Version)
	case UnknownApplied:
		return fmt.Sprintf("migrate: plan: applied version %d has no matching unit", e.Version)
	case ChecksumMismatch:
		return fmt.Sprintf("migrate: plan: checksum mismatch at version %d: recorded %s, current %s", e.Version, e.Recorded, e.Current)
	case IrreversibleApplied:
		return fmt.Sprintf("migrate: plan: version %d is irreversible, cannot roll back", e.Version)
	default:
		return "migrate: plan: unknown error"
	}
}

// ExecutionErrorKind enumerates the ways a single executor step can fail.
type ExecutionErrorKind int

const (
	_ ExecutionErrorKind = iota
	// StatementFailed means the step failed before its commit: the driver
	// rejected the unit's body, or the transaction's begin or the
	// bookkeeping write failed.
	StatementFailed
	// AbortedByBatch means the step's effects, if it ran at all, were
	// discarded: another step in the same batch transaction (or the batch
	// commit) failed and the whole batch was rolled back.
	AbortedByBatch
	// CommitFailed means the step's body applied but its commit failed.
	CommitFailed
)

// ExecutionError is attached to a Failed StepOutcome.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Version Version
	Cause   error
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case StatementFailed:
		return fmt.Sprintf("migrate: execute: version %d: statement failed: %v", e.Version, e.Cause)
	case AbortedByBatch:
		return fmt.Sprintf("migrate: execute: version %d: aborted by batch failure", e.Version)
	case CommitFailed:
		return fmt.Sprintf("migrate: execute: version %d: commit failed: %v", e.Version, e.Cause)
	default:
		return "migrate: execute: unknown error"
	}
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

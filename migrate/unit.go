// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Version is an opaque, strictly positive, ordered key. By convention it
// is encoded as YYYYMMDDhhmmss when generated from a timestamp, but the
// engine never interprets it beyond ordering and equality. Zero is
// reserved to mean "below any real version" — used as a RollbackTo
// target meaning "roll back everything".
type Version int64

// Below is the reserved Version denoting "rollback everything".
const Below Version = 0

// nameRE is the grammar a Unit.Name must satisfy.
var nameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidName reports whether name satisfies the [a-z0-9_]+ grammar.
func ValidName(name string) bool {
	return name != "" && nameRE.MatchString(name)
}

type (
	// Source records where a Unit's bodies came from.
	Source interface{ source() }

	// FileBacked is the Source of a Unit discovered on disk.
	FileBacked struct {
		PathUp   string
		PathDown string // empty if the unit has no down file
	}

	// Programmatic is the Source of a Unit whose Up/Down are Go functions
	// over a Conn rather than SQL text. Its Checksum is a caller-supplied
	// stable identifier (see Unit.Checksum), not a content hash, so
	// checksum verification is best-effort for this source variant.
	Programmatic struct {
		Up   func(ctx context.Context, conn Conn) error
		Down func(ctx context.Context, conn Conn) error // nil if irreversible
	}
)

func (FileBacked) source()   {}
func (Programmatic) source() {}

// Unit is an immutable, versioned migration descriptor. Units are created
// at discovery time and never mutated afterward.
type Unit struct {
	Version  Version
	Name     string
	UpBody   string // SQL text for FileBacked/literal units; empty for Programmatic
	DownBody string // empty means the unit is irreversible
	Checksum string // hex-encoded, >= 32 chars; content digest of UpBody
	Source   Source
}

// Reversible reports whether the unit declares a non-empty down body (or,
// for Programmatic units, a non-nil Down function).
func (u *Unit) Reversible() bool {
	switch s := u.Source.(type) {
	case Programmatic:
		return s.Down != nil
	default:
		return u.DownBody != ""
	}
}

// Validate checks the unit's invariants: positive version and a
// conforming name. It does not recompute the checksum.
func (u *Unit) Validate() error {
	if u.Version <= 0 {
		return fmt.Errorf("migrate: unit %q: version must be > 0", u.Name)
	}
	if !ValidName(u.Name) {
		return fmt.Errorf("migrate: unit version %d: invalid name %q", u.Version, u.Name)
	}
	return nil
}

// Checksum computes the content digest of up, per the §4.2 contract: a
// leading UTF-8 BOM is stripped, CRLF is normalized to LF, and the result
// is hashed with SHA-256. The returned string is the lower-case hex
// digest (64 characters — well above the 32-character floor the contract
// requires).
func Checksum(up string) string {
	sum := sha256.Sum256(normalize(up))
	return hex.EncodeToString(sum[:])
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// normalize strips a leading UTF-8 BOM and converts CRLF to LF, so the
// checksum is independent of the editing platform that produced the file.
func normalize(s string) []byte {
	b := []byte(s)
	if len(b) >= 3 && b[0] == bom[0] && b[1] == bom[1] && b[2] == bom[2] {
		b = b[3:]
	}
	if !strings.Contains(string(b), "\r\n") {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\r' && i+1 < len(b) && b[i+1] == '\n' {
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// Set is an ordered collection of Units: strictly ascending by Version,
// with no duplicate versions. Names are not checked for uniqueness here;
// Validate reports (case-insensitive) name collisions. Sets are built by
// Discover or NewSet; callers otherwise treat a Set as read-only.
type Set struct {
	units []*Unit
}

// NewSet sorts units by version into a Set. It fails with a
// DuplicateVersion DiscoveryError when two units share a version, and
// checks nothing else: unit invariants and name collisions are left to
// Unit.Validate and Validate in validate.go.
func NewSet(units []*Unit) (*Set, error) {
	sorted := make([]*Unit, len(units))
	copy(sorted, units)
	sortUnits(sorted)
	seen := make(map[Version]bool, len(sorted))
	for _, u := range sorted {
		if seen[u.Version] {
			return nil, &DiscoveryError{Kind: DuplicateVersion, Version: u.Version}
		}
		seen[u.Version] = true
	}
	return &Set{units: sorted}, nil
}

func sortUnits(units []*Unit) {
	for i := 1; i < len(units); i++ {
		for j := i; j > 0 && units[j-1].Version > units[j].Version; j-- {
			units[j-1], units[j] = units[j], units[j-1]
		}
	}
}

// Units returns the ordered, ascending slice of units in the set. The
// returned slice must not be mutated.
func (s *Set) Units() []*Unit { return s.units }

// Len returns the number of units in the set.
func (s *Set) Len() int { return len(s.units) }

// Lookup returns the unit with the given version, or nil if absent.
func (s *Set) Lookup(v Version) *Unit {
	for _, u := range s.units {
		if u.Version == v {
			return u
		}
	}
	return nil
}

// Max returns the highest version in the set, or Below if the set is empty.
func (s *Set) Max() Version {
	if len(s.units) == 0 {
		return Below
	}
	return s.units[len(s.units)-1].Version
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"
)

// filenameRE matches <version>_<name>.<direction>.sql. Version is one or
// more digits, name is canonicalized (see canonicalName) before being
// checked against ValidName, direction is "up" or "down".
var filenameRE = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// half accumulates the up/down files seen for one version while scanning
// a directory, before they're turned into a Unit.
type half struct {
	version  Version
	upName   string // canonicalized name from the up file, once seen
	downName string // canonicalized name from the down file, once seen
	pathUp   string
	pathDown string
}

// Discover scans dir for migration files matching the §4.3 grammar and
// returns a sorted, validated Set. Files that don't match the grammar at
// all, or are a down file with no up partner, are ignored (returned in
// the second value as a slice of filenames a caller may warn about).
// Discover fills Checksum from each unit's up body.
func Discover(dir string) (*Set, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, &DiscoveryError{Kind: UnreadableFile, Path: dir, Cause: err}
	}
	halves := make(map[Version]*half)
	var order []Version
	var ignored []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenameRE.FindStringSubmatch(e.Name())
		if m == nil {
			ignored = append(ignored, e.Name())
			continue
		}
		vn, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, nil, &DiscoveryError{Kind: BadFilename, Path: e.Name()}
		}
		v := Version(vn)
		name := canonicalName(m[2])
		if !ValidName(name) {
			return nil, nil, &DiscoveryError{Kind: BadFilename, Path: e.Name()}
		}
		h, ok := halves[v]
		if !ok {
			h = &half{version: v}
			halves[v] = h
			order = append(order, v)
		}
		path := filepath.Join(dir, e.Name())
		switch m[3] {
		case "up":
			if h.pathUp != "" {
				return nil, nil, &DiscoveryError{Kind: DuplicateVersion, Version: v}
			}
			h.pathUp, h.upName = path, name
		case "down":
			h.pathDown, h.downName = path, name
		}
		if h.pathUp != "" && h.pathDown != "" && h.upName != h.downName {
			return nil, nil, &DiscoveryError{Kind: NamePartnerMismatch, Version: v}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	units := make([]*Unit, 0, len(order))
	for _, v := range order {
		h := halves[v]
		if h.pathUp == "" {
			// A lone down file with no up partner is not a unit.
			ignored = append(ignored, filepath.Base(h.pathDown))
			continue
		}
		up, err := os.ReadFile(h.pathUp)
		if err != nil {
			return nil, nil, &DiscoveryError{Kind: UnreadableFile, Path: h.pathUp, Cause: err}
		}
		var down []byte
		if h.pathDown != "" {
			down, err = os.ReadFile(h.pathDown)
			if err != nil {
				return nil, nil, &DiscoveryError{Kind: UnreadableFile, Path: h.pathDown, Cause: err}
			}
		}
		u := &Unit{
			Version:  v,
			Name:     h.upName,
			UpBody:   string(up),
			DownBody: string(down),
			Checksum: Checksum(string(up)),
			Source:   FileBacked{PathUp: h.pathUp, PathDown: h.pathDown},
		}
		if err := u.Validate(); err != nil {
			return nil, nil, fmt.Errorf("migrate: discover: %w", err)
		}
		units = append(units, u)
	}
	set, err := NewSet(units)
	if err != nil {
		return nil, nil, err
	}
	return set, ignored, nil
}

// canonicalName normalizes a raw filename fragment into the [a-z0-9_]+
// grammar, tolerating CamelCase or dash-separated fragments some
// generators emit. ValidName still has final say over the result.
func canonicalName(raw string) string {
	s := inflect.Underscore(raw)
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}

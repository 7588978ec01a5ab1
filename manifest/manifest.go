// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package manifest describes programmatic migration units — ones whose
// Up/Down are Go functions rather than SQL files — in a small HCL
// document, so a directory of Go-backed units still has the same kind of
// on-disk declaration that file-backed units get for free from their
// filenames.
package manifest

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/brkmustu/parsql/migrate"
)

// UnitMeta is one declared programmatic unit's metadata. The migrate
// package does not read manifests; pairing an entry with its Go functions
// (e.g. by Name) is up to the caller. The manifest carries only
// metadata: version, name, description, reversibility and a stable
// checksum. Params carries arbitrary
// HCL-typed arguments (e.g. a batch size, a feature-flag name) the
// registered Go function can read out of the raw cty.Value without the
// manifest package needing to know their shape.
type UnitMeta struct {
	Version        migrate.Version
	Name           string
	Description    string
	Reversible     bool
	StableChecksum string
	Params         cty.Value
}

// rawUnit is the HCL block shape: labels are always strings in HCL
// syntax, so Version is parsed from its label text after decoding.
type rawUnit struct {
	Version        string    `hcl:"version,label"`
	Name           string    `hcl:"name,label"`
	Description    string    `hcl:"description,optional"`
	Reversible     bool      `hcl:"reversible,optional"`
	StableChecksum string    `hcl:"checksum,optional"`
	Params         cty.Value `hcl:"params,optional"`
}

type root struct {
	Units []rawUnit `hcl:"unit,block"`
}

// Load parses path as an HCL manifest and returns its declared units.
func Load(path string) ([]UnitMeta, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, diags)
	}
	var r root
	if diags := gohcl.DecodeBody(f.Body, nil, &r); diags.HasErrors() {
		return nil, fmt.Errorf("manifest: decode %q: %w", path, diags)
	}
	seen := make(map[migrate.Version]bool, len(r.Units))
	units := make([]UnitMeta, 0, len(r.Units))
	for _, raw := range r.Units {
		vn, err := strconv.ParseInt(raw.Version, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest: %q: invalid version label %q: %w", path, raw.Version, err)
		}
		v := migrate.Version(vn)
		if seen[v] {
			return nil, fmt.Errorf("manifest: %q: duplicate version %d", path, v)
		}
		seen[v] = true
		if !migrate.ValidName(raw.Name) {
			return nil, fmt.Errorf("manifest: %q: invalid unit name %q", path, raw.Name)
		}
		units = append(units, UnitMeta{
			Version:        v,
			Name:           raw.Name,
			Description:    raw.Description,
			Reversible:     raw.Reversible,
			StableChecksum: raw.StableChecksum,
			Params:         raw.Params,
		})
	}
	return units, nil
}

// LoadString parses src (HCL source text) the same way Load parses a
// file, by writing it to a temporary file and loading that. filename is
// not used: errors and diagnostics name the temporary file.
func LoadString(filename, src string) ([]UnitMeta, error) {
	tmp, err := os.CreateTemp("", "manifest-*.hcl")
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Load(tmp.Name())
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brkmustu/parsql/migrate"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDiscover_PairsUpAndDownFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_create_users.up.sql", "CREATE TABLE users(id INT);")
	writeFile(t, dir, "20240101000000_create_users.down.sql", "DROP TABLE users;")
	writeFile(t, dir, "20240102000000_add_index.up.sql", "CREATE INDEX i ON users(id);")

	set, ignored, err := migrate.Discover(dir)
	require.NoError(t, err)
	require.Empty(t, ignored)
	require.Equal(t, 2, set.Len())

	u := set.Lookup(20240101000000)
	require.NotNil(t, u)
	require.Equal(t, "create_users", u.Name)
	require.True(t, u.Reversible())

	v2 := set.Lookup(20240102000000)
	require.NotNil(t, v2)
	require.False(t, v2.Reversible())
}

func TestDiscover_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_a.up.sql", "CREATE TABLE a(x INT);")
	writeFile(t, dir, "README.md", "not a migration")
	writeFile(t, dir, "20240101000000_a.down.sql", "DROP TABLE a;")

	set, ignored, err := migrate.Discover(dir)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	require.Contains(t, ignored, "README.md")
}

func TestDiscover_LoneDownFileIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_a.down.sql", "DROP TABLE a;")

	set, ignored, err := migrate.Discover(dir)
	require.NoError(t, err)
	require.Equal(t, 0, set.Len())
	require.Len(t, ignored, 1)
}

func TestDiscover_DuplicateUpVersionFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_a.up.sql", "CREATE TABLE a(x INT);")
	writeFile(t, dir, "20240101000000_b.up.sql", "CREATE TABLE b(x INT);")

	_, _, err := migrate.Discover(dir)
	require.Error(t, err)
	var derr *migrate.DiscoveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, migrate.DuplicateVersion, derr.Kind)
}

func TestDiscover_NamePartnerMismatchFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_create_users.up.sql", "CREATE TABLE users(id INT);")
	writeFile(t, dir, "20240101000000_drop_users.down.sql", "DROP TABLE users;")

	_, _, err := migrate.Discover(dir)
	require.Error(t, err)
	var derr *migrate.DiscoveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, migrate.NamePartnerMismatch, derr.Kind)
	require.Equal(t, migrate.Version(20240101000000), derr.Version)
}

func TestDiscover_NamePartnerMismatchFailsRegardlessOfOrder(t *testing.T) {
	// Down file sorts by name (and is thus scanned) before its up partner —
	// the mismatch must still be caught, not just when up arrives first.
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_aaa_down.down.sql", "DROP TABLE users;")
	writeFile(t, dir, "20240101000000_create_users.up.sql", "CREATE TABLE users(id INT);")

	_, _, err := migrate.Discover(dir)
	require.Error(t, err)
	var derr *migrate.DiscoveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, migrate.NamePartnerMismatch, derr.Kind)
}

func TestDiscover_CanonicalizesCamelCaseNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101000000_CreateUsersTable.up.sql", "CREATE TABLE users(id INT);")

	set, _, err := migrate.Discover(dir)
	require.NoError(t, err)
	u := set.Lookup(20240101000000)
	require.NotNil(t, u)
	require.Equal(t, "create_users_table", u.Name)
}

func TestDiscover_ChecksumMatchesComputed(t *testing.T) {
	dir := t.TempDir()
	body := "CREATE TABLE a(x INT);"
	writeFile(t, dir, "20240101000000_a.up.sql", body)

	set, _, err := migrate.Discover(dir)
	require.NoError(t, err)
	u := set.Lookup(20240101000000)
	require.Equal(t, migrate.Checksum(body), u.Checksum)
}

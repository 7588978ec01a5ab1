// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate_test

import (
	"context"
	"testing"

	"github.com/brkmustu/parsql/migrate"
	"github.com/stretchr/testify/require"
)

func TestChecksum_NormalizesCRLFAndBOM(t *testing.T) {
	plain := "CREATE TABLE t(x INT);\n"
	crlf := "CREATE TABLE t(x INT);\r\n"
	bom := "\xef\xbb\xbfCREATE TABLE t(x INT);\n"
	require.Equal(t, migrate.Checksum(plain), migrate.Checksum(crlf))
	require.Equal(t, migrate.Checksum(plain), migrate.Checksum(bom))
	require.Len(t, migrate.Checksum(plain), 64)
}

func TestChecksum_IndependentOfNameAndDown(t *testing.T) {
	u1 := migrate.Unit{Version: 1, Name: "a", UpBody: "X", DownBody: "Y"}
	u2 := migrate.Unit{Version: 2, Name: "b", UpBody: "X", DownBody: "Z"}
	require.Equal(t, migrate.Checksum(u1.UpBody), migrate.Checksum(u2.UpBody))
}

func TestValidName(t *testing.T) {
	require.True(t, migrate.ValidName("create_users_table"))
	require.True(t, migrate.ValidName("a1"))
	require.False(t, migrate.ValidName(""))
	require.False(t, migrate.ValidName("CreateUsers"))
	require.False(t, migrate.ValidName("create-users"))
}

func TestUnit_Validate(t *testing.T) {
	u := &migrate.Unit{Version: 0, Name: "ok"}
	require.Error(t, u.Validate())
	u.Version = 1
	require.NoError(t, u.Validate())
	u.Name = "Bad Name"
	require.Error(t, u.Validate())
}

func TestUnit_Reversible(t *testing.T) {
	fb := &migrate.Unit{Version: 1, Name: "a", DownBody: "DROP TABLE a;"}
	require.True(t, fb.Reversible())
	fb.DownBody = ""
	require.False(t, fb.Reversible())

	reversible := &migrate.Unit{Version: 1, Name: "a", Source: migrate.Programmatic{
		Up:   func(ctx context.Context, conn migrate.Conn) error { return nil },
		Down: func(ctx context.Context, conn migrate.Conn) error { return nil },
	}}
	require.True(t, reversible.Reversible())

	irreversible := &migrate.Unit{Version: 1, Name: "a", Source: migrate.Programmatic{
		Up: func(ctx context.Context, conn migrate.Conn) error { return nil },
	}}
	require.False(t, irreversible.Reversible())
}

func TestSet_DuplicateVersionRejected(t *testing.T) {
	units := []*migrate.Unit{
		{Version: 1, Name: "a"},
		{Version: 1, Name: "b"},
	}
	_, err := migrate.NewSet(units)
	require.Error(t, err)
	var derr *migrate.DiscoveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, migrate.DuplicateVersion, derr.Kind)
}

func TestSet_OrderedByVersion(t *testing.T) {
	units := []*migrate.Unit{
		{Version: 3, Name: "c"},
		{Version: 1, Name: "a"},
		{Version: 2, Name: "b"},
	}
	set, err := migrate.NewSet(units)
	require.NoError(t, err)
	got := set.Units()
	require.Equal(t, migrate.Version(1), got[0].Version)
	require.Equal(t, migrate.Version(2), got[1].Version)
	require.Equal(t, migrate.Version(3), got[2].Version)
	require.Equal(t, migrate.Version(3), set.Max())
}

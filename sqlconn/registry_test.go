// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlconn_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/brkmustu/parsql/sqlconn"
	"github.com/stretchr/testify/require"
)

func TestRegister_DuplicateSchemePanics(t *testing.T) {
	require.Panics(t, func() {
		sqlconn.Register("postgres", sqlconn.OpenerFunc(func(context.Context, *url.URL) (*sqlconn.Conn, error) {
			return nil, nil
		}))
	})
}

func TestOpen_UnknownSchemeErrors(t *testing.T) {
	_, err := sqlconn.Open(context.Background(), "mysql://user@host/db")
	require.Error(t, err)
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlconn

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

type (
	// Opener opens a Conn for the given parsed connection URL.
	Opener interface {
		Open(ctx context.Context, u *url.URL) (*Conn, error)
	}

	// OpenerFunc allows using a function as an Opener.
	OpenerFunc func(ctx context.Context, u *url.URL) (*Conn, error)
)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, u *url.URL) (*Conn, error) { return f(ctx, u) }

var registry sync.Map

// Register associates scheme with an Opener, so Open can dispatch DSNs of
// that scheme to it. Register panics if scheme is already registered or
// opener is nil — both are programmer errors, expected to surface at
// package init time, not at runtime.
func Register(scheme string, opener Opener) {
	if opener == nil {
		panic("sqlconn: Register opener is nil")
	}
	if _, dup := registry.LoadOrStore(scheme, opener); dup {
		panic("sqlconn: Register called twice for scheme " + scheme)
	}
}

func init() {
	Register("postgres", OpenerFunc(func(ctx context.Context, u *url.URL) (*Conn, error) {
		return OpenPostgres(ctx, u.String())
	}))
	Register("postgresql", OpenerFunc(func(ctx context.Context, u *url.URL) (*Conn, error) {
		return OpenPostgres(ctx, u.String())
	}))
	Register("sqlite", OpenerFunc(func(ctx context.Context, u *url.URL) (*Conn, error) {
		return OpenSQLite(ctx, sqlitePath(u))
	}))
	Register("file", OpenerFunc(func(ctx context.Context, u *url.URL) (*Conn, error) {
		return OpenSQLite(ctx, sqlitePath(u))
	}))
}

// sqlitePath recovers the filesystem path from a sqlite:// or file:// DSN.
// "sqlite://./rel/path.db" parses with the leading "." as u.Host and the
// rest as u.Path; "sqlite:///abs/path.db" and "sqlite:path.db" leave Host
// empty, with the path carried in Path or Opaque respectively.
func sqlitePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

// Open opens a Conn by dispatching dsn's URL scheme to a registered
// Opener, generalizing a single hard-coded dialect switch into a
// registry any driver adapter can extend by calling Register from its
// own init.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: parse %q: %w", dsn, err)
	}
	v, ok := registry.Load(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("sqlconn: no opener registered for scheme %q", u.Scheme)
	}
	return v.(Opener).Open(ctx, u)
}

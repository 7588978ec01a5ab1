// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package pgdial provides an optional Conn constructor that reaches a
// Postgres instance through the Cloud SQL Auth Proxy's Go connector
// instead of a plain TCP DSN, for deployments that run migrations from
// outside the instance's VPC.
package pgdial

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"

	"github.com/brkmustu/parsql/migrate"
	"github.com/brkmustu/parsql/sqlconn"
)

// Open dials instanceConnName (the "project:region:instance" identifier
// from the Cloud SQL console) and returns it wrapped as a sqlconn.Conn.
// user, password and dbname select the Postgres role and database the
// way they would in a normal DSN; the network path itself is handled by
// the connector's dialer instead of host/port.
func Open(ctx context.Context, instanceConnName, user, password, dbname string, opts ...cloudsqlconn.Option) (*sqlconn.Conn, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("pgdial: new dialer: %w", err)
	}
	dsn := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=disable", user, password, dbname)
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("pgdial: parse dsn: %w", err)
	}
	connConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(ctx, instanceConnName)
	}
	driverName := stdlib.RegisterConnConfig(connConfig)
	db, err := sql.Open("pgx", driverName)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("pgdial: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		dialer.Close()
		return nil, fmt.Errorf("pgdial: ping: %w", err)
	}
	return sqlconn.New(db, migrate.Postgres), nil
}

// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

// Config is a resolved, immutable configuration value. It is constructed
// once via NewConfig and passed by value to the planner and executor; it
// is never mutated mid-operation. Parsing it from a config file or
// environment variables is explicitly the frontend's job — the engine
// only ever sees the finished value.
type Config struct {
	TableName            string
	VersionColumn        string
	NameColumn           string
	AppliedAtColumn      string
	ChecksumColumn       string
	ExecutionTimeColumn  string
	VerifyChecksums      bool
	AllowOutOfOrder      bool
	TransactionPerUnit   bool
	RequireDenseSequence bool
}

// ConfigOption configures a Config under construction, following the
// same functional-options shape the package uses for Executor.
type ConfigOption func(*Config)

// WithTableName overrides the bookkeeping table name (default "schema_migrations").
func WithTableName(name string) ConfigOption { return func(c *Config) { c.TableName = name } }

// WithColumnNames overrides the bookkeeping column names. Any empty
// argument leaves the corresponding default untouched.
func WithColumnNames(version, name, appliedAt, checksum, executionTime string) ConfigOption {
	return func(c *Config) {
		if version != "" {
			c.VersionColumn = version
		}
		if name != "" {
			c.NameColumn = name
		}
		if appliedAt != "" {
			c.AppliedAtColumn = appliedAt
		}
		if checksum != "" {
			c.ChecksumColumn = checksum
		}
		if executionTime != "" {
			c.ExecutionTimeColumn = executionTime
		}
	}
}

// WithVerifyChecksums sets whether the planner aborts on checksum
// mismatch (true, the default) or merely warns (false).
func WithVerifyChecksums(v bool) ConfigOption { return func(c *Config) { c.VerifyChecksums = v } }

// WithAllowOutOfOrder sets whether the planner accepts late-arriving
// units below the max applied version (true) or fails with
// GapDetected (false, the default).
func WithAllowOutOfOrder(v bool) ConfigOption { return func(c *Config) { c.AllowOutOfOrder = v } }

// WithTransactionPerUnit sets whether the executor commits after every
// unit (true, the default) or once for the whole batch (false).
func WithTransactionPerUnit(v bool) ConfigOption {
	return func(c *Config) { c.TransactionPerUnit = v }
}

// WithRequireDenseSequence enables the online gap check in Validate that
// compares pending versions against applied versions in the database.
func WithRequireDenseSequence(v bool) ConfigOption {
	return func(c *Config) { c.RequireDenseSequence = v }
}

// NewConfig returns a Config with the §4.8 defaults, then applies opts in
// order.
func NewConfig(opts ...ConfigOption) Config {
	c := Config{
		TableName:           "schema_migrations",
		VersionColumn:       "version",
		NameColumn:          "name",
		AppliedAtColumn:     "applied_at",
		ChecksumColumn:      "checksum",
		ExecutionTimeColumn: "execution_time_ms",
		VerifyChecksums:     true,
		AllowOutOfOrder:     false,
		TransactionPerUnit:  true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

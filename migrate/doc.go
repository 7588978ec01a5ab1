// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package migrate implements the core schema-migration engine: discovering
// versioned migration units from a directory, bookkeeping which units a
// database has applied, planning a transition between two states and
// executing that plan under a configurable transaction policy.
//
// The package never talks to a concrete database driver directly. Instead
// every database interaction goes through the narrow Conn capability,
// which sibling packages (e.g. sqlconn) implement for real backends.
package migrate

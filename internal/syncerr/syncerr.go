// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package syncerr defines the error kinds exchanged across the
// engine's component boundaries. Every expected failure is a typed
// value that satisfies error and can be matched with errors.As; only
// defects that should abort the process panic or bubble up as plain
// github.com/pkg/errors errors.
package syncerr

import (
	"fmt"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// ForeignKeyViolation reports that applying an entry failed because a
// referenced row does not yet exist locally. The change applier turns
// this into a deferral; it should not usually escape to a caller.
type ForeignKeyViolation struct {
	Table  string
	PK     string
	Detail string
}

func (e *ForeignKeyViolation) Error() string {
	return fmt.Sprintf("foreign key violation on %s%s: %s", e.Table, e.PK, e.Detail)
}

// DeferredChangeFailed reports that one or more entries remained
// FK-deferred after every retry pass was exhausted.
type DeferredChangeFailed struct {
	First    syncmodel.Entry
	Residual int
}

func (e *DeferredChangeFailed) Error() string {
	return fmt.Sprintf("%d entries remained deferred after all retry passes; first is %s/%s@%d",
		e.Residual, e.First.TableName, string(e.First.PKValue), e.First.Version)
}

// FullResyncRequired signals that a client's watermark is older than
// the oldest surviving log entry: incremental sync cannot catch it up
// and the host must perform an out-of-band snapshot.
type FullResyncRequired struct {
	ClientVersion int64
	OldestVersion int64
}

func (e *FullResyncRequired) Error() string {
	return fmt.Sprintf("client at version %d is behind oldest surviving version %d; full resync required",
		e.ClientVersion, e.OldestVersion)
}

// HashMismatch reports that a recomputed hash did not match the one a
// peer asserted. It is a data-integrity signal, not a security one; a
// constant-time comparison is not required.
type HashMismatch struct {
	Expected string
	Actual   string
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Database wraps a failure reported by a host-supplied store or
// applier callback. Such errors are caller-retryable.
type Database struct {
	Msg   string
	Cause error
}

func (e *Database) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database: %s: %s", e.Msg, e.Cause)
	}
	return fmt.Sprintf("database: %s", e.Msg)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Database) Unwrap() error { return e.Cause }

// NewDatabase wraps cause as a Database error with a stack trace
// attached at the call site.
func NewDatabase(msg string, cause error) error {
	return errors.WithStack(&Database{Msg: msg, Cause: cause})
}

// UnresolvedConflict is returned by a custom ConflictResolver that
// declines to pick a side.
type UnresolvedConflict struct {
	Local  syncmodel.Entry
	Remote syncmodel.Entry
}

func (e *UnresolvedConflict) Error() string {
	return fmt.Sprintf("unresolved conflict on %s%s between origins %s and %s",
		e.Local.TableName, string(e.Local.PKValue), e.Local.Origin, e.Remote.Origin)
}

// MappingFailed wraps a Database or evaluator error encountered while
// transforming an entry through the mapping engine.
type MappingFailed struct {
	MappingID string
	Cause     error
}

func (e *MappingFailed) Error() string {
	return fmt.Sprintf("mapping %s failed: %s", e.MappingID, e.Cause)
}

func (e *MappingFailed) Unwrap() error { return e.Cause }

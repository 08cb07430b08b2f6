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

// Package syncmodel contains the data types and invariants that
// describe the unified change log shared by every replica: entries,
// replica/session state, tracked clients, subscriptions, and the
// per-mapping tracking records. Keeping these in one package lets the
// rest of the engine (fetch, apply, conflict, tombstone, mapping)
// compose around a single, immutable vocabulary.
package syncmodel

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Operation is the kind of change a log Entry records.
type Operation string

// The three operations a change log entry may describe.
const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// TimestampLayout is the ISO-8601 UTC, millisecond-precision layout
// that every Entry.Timestamp must be formatted with. Ordering
// comparisons throughout the engine compare these strings
// lexicographically, which is only correct when every emitter uses
// this exact, zero-padded layout.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is a single unit of replication: one row of the unified,
// append-only change log.
//
//   - (Origin, Version) uniquely identifies an Entry across every
//     replica that will ever see it.
//   - For a given (TableName, PKValue), the Entry with the greatest
//     (Timestamp, Version) on a replica is that replica's observed
//     state.
//   - A delete Entry must never be superseded by a payload-bearing
//     Entry with a smaller Timestamp.
//   - Payload is nil iff Operation is OpDelete.
//   - Entries are never mutated after being appended; this type has
//     no setters beyond construction.
type Entry struct {
	Version   int64
	TableName string
	PKValue   json.RawMessage // canonical JSON object
	Operation Operation
	Payload   json.RawMessage // canonical JSON object, nil for delete
	Origin    string          // opaque replica identifier, typically a UUID v4
	Timestamp string          // TimestampLayout
}

// Validate checks the structural invariants that every Entry must
// satisfy before it is appended to a log or applied. Cross-entry
// invariants are store- and apply-level concerns and are not checked
// here.
func (e Entry) Validate() error {
	if e.TableName == "" {
		return errors.New("entry: table_name must not be empty")
	}
	if !e.Operation.Valid() {
		return errors.Errorf("entry: unknown operation %q", e.Operation)
	}
	if len(e.PKValue) == 0 {
		return errors.New("entry: pk_value must not be empty")
	}
	isDelete := e.Operation == OpDelete
	hasPayload := len(e.Payload) > 0 && string(e.Payload) != "null"
	if isDelete && hasPayload {
		return errors.New("entry: delete operation must carry a null payload")
	}
	if !isDelete && !hasPayload {
		return errors.New("entry: insert/update operation requires a payload")
	}
	if e.Origin == "" {
		return errors.New("entry: origin must not be empty")
	}
	if _, err := time.Parse(TimestampLayout, e.Timestamp); err != nil {
		return errors.Wrap(err, "entry: timestamp is not ISO-8601 UTC millisecond-precision")
	}
	return nil
}

// SameRecord reports whether e and other identify the same logical row:
// equal table name and equal canonical PK JSON.
func (e Entry) SameRecord(other Entry) bool {
	return e.TableName == other.TableName && string(e.PKValue) == string(other.PKValue)
}

// IsDelete reports whether the entry is a tombstone.
func (e Entry) IsDelete() bool {
	return e.Operation == OpDelete
}

// Before reports whether e strictly precedes other under the
// (Timestamp, Version) ordering used for last-write-wins conflict
// resolution.
func (e Entry) Before(other Entry) bool {
	if e.Timestamp != other.Timestamp {
		return e.Timestamp < other.Timestamp
	}
	return e.Version < other.Version
}

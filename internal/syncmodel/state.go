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

package syncmodel

import "encoding/json"

// ReplicaState is the per-replica sync watermark pair. OriginID is
// immutable once set; LastServerVersion and LastPushVersion only ever
// advance.
type ReplicaState struct {
	OriginID          string
	LastServerVersion int64
	LastPushVersion   int64
}

// SessionState holds the ephemeral, per-connection echo-suppression
// flag. It is never persisted across restarts; it is threaded through
// the apply path as a value rather than held as ambient global state.
type SessionState struct {
	SyncActive bool
}

// Enable flips the suppression flag on.
func (s *SessionState) Enable() { s.SyncActive = true }

// Disable flips the suppression flag off.
func (s *SessionState) Disable() { s.SyncActive = false }

// TrackedClient is a server-side record of a remote replica's sync
// progress, used by the tombstone manager to compute a safe-purge
// version.
type TrackedClient struct {
	OriginID          string
	LastSyncVersion   int64
	LastSyncTimestamp string // TimestampLayout
	CreatedAt         string // TimestampLayout
}

// SubscriptionType selects how a Subscription is matched against new
// entries.
type SubscriptionType string

// The three subscription kinds.
const (
	SubscriptionRecord SubscriptionType = "record"
	SubscriptionTable  SubscriptionType = "table"
	SubscriptionQuery  SubscriptionType = "query"
)

// Subscription is a client's request to be notified of changes to a
// table, a specific record, or (as a host extension point) a query
// predicate.
type Subscription struct {
	SubscriptionID string
	OriginID       string
	Type           SubscriptionType
	TableName      string
	Filter         json.RawMessage // JSON array of canonical PKs, for Type == Record
	CreatedAt      string          // TimestampLayout
	ExpiresAt      string          // TimestampLayout, empty if it never expires
}

// MappingState tracks sync progress for one TableMapping.
type MappingState struct {
	MappingID         string
	LastSyncedVersion int64
	LastSyncTimestamp string // TimestampLayout
	RecordsSynced     int64
}

// RecordHash stores the last-synced payload hash for one mapped
// record, used by the "hash" tracking strategy.
type RecordHash struct {
	MappingID   string
	SourcePK    json.RawMessage // canonical JSON
	PayloadHash string          // lowercase hex SHA-256
	SyncedAt    string          // TimestampLayout
}

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

package mapping

import (
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/xhash"
)

// RecordHashLookup resolves the last-synced payload hash for one
// source record under a mapping, for the "hash" tracking strategy. ok
// is false when no prior hash is on record, which ShouldSync treats
// as "needs sync".
type RecordHashLookup func(mappingID string, pkValue []byte) (hash string, ok bool)

// LastSyncedAtLookup resolves the last-synced timestamp for one
// source record, for the "timestamp" tracking strategy. ok is false
// when the record has never synced.
type LastSyncedAtLookup func(mappingID string, pkValue []byte) (timestamp string, ok bool)

// ShouldSync decides whether a mapping needs to process e, consulted
// before Apply runs. state is the mapping's current MappingState
// (zero value if the mapping has never synced anything). Deletes
// always sync under the hash strategy.
func ShouldSync(
	m TableMapping,
	e syncmodel.Entry,
	state syncmodel.MappingState,
	hashOf RecordHashLookup,
	lastSyncedAt LastSyncedAtLookup,
) (bool, error) {
	switch m.Tracking.effective() {
	case TrackingHash:
		if e.IsDelete() {
			return true, nil
		}
		want, err := xhash.PayloadHash(e.Payload)
		if err != nil {
			return false, err
		}
		got, ok := hashOf(m.ID, e.PKValue)
		return !ok || got != want, nil

	case TrackingTimestamp:
		last, ok := lastSyncedAt(m.ID, e.PKValue)
		return !ok || e.Timestamp > last, nil

	case TrackingExternal:
		return true, nil

	default: // TrackingVersion
		return e.Version > state.LastSyncedVersion, nil
	}
}

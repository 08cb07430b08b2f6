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

// Package tombstone computes safe-purge versions and stale-client
// garbage collection for the change log's delete entries. Nothing in
// this package deletes data itself; Purge calls a host-supplied
// function once it has computed the version that is safe to purge up
// to.
package tombstone

import (
	"time"

	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
)

// InactivityLimit is the default window after which a tracked client
// that has not synced is considered stale.
const InactivityLimit = 90 * 24 * time.Hour

// SafePurgeVersion returns the minimum LastSyncVersion across clients,
// or 0 if there are no tracked clients at all. Zero suppresses
// purging: never purge what nobody has seen.
func SafePurgeVersion(clients []syncmodel.TrackedClient) int64 {
	if len(clients) == 0 {
		return 0
	}
	min := clients[0].LastSyncVersion
	for _, c := range clients[1:] {
		if c.LastSyncVersion < min {
			min = c.LastSyncVersion
		}
	}
	return min
}

// FindStaleClients returns the origin IDs of clients whose
// LastSyncTimestamp is older than now-maxInactivity. now and every
// client's LastSyncTimestamp must use syncmodel.TimestampLayout.
func FindStaleClients(clients []syncmodel.TrackedClient, now time.Time, maxInactivity time.Duration) []string {
	if maxInactivity <= 0 {
		maxInactivity = InactivityLimit
	}
	cutoff := now.Add(-maxInactivity).Format(syncmodel.TimestampLayout)

	var stale []string
	for _, c := range clients {
		if c.LastSyncTimestamp < cutoff {
			stale = append(stale, c.OriginID)
		}
	}
	return stale
}

// RequiresFullResync reports whether a client at clientVersion has
// fallen behind the oldest surviving log entry and can no longer be
// caught up incrementally.
func RequiresFullResync(clientVersion, oldestVersion int64) bool {
	return clientVersion < oldestVersion
}

// FullResyncError builds the protocol error the coordinator must
// surface when RequiresFullResync is true.
func FullResyncError(clientVersion, oldestVersion int64) error {
	return &syncerr.FullResyncRequired{ClientVersion: clientVersion, OldestVersion: oldestVersion}
}

// PurgeFunc deletes log entries with version <= safeVersion that are
// eligible per host policy (tombstones, or superseded entries), and
// reports how many rows it removed.
type PurgeFunc func(safeVersion int64) (count int, err error)

// Purge removes stale clients first (so abandoned clients never pin
// the log forever), then computes the safe-purge version from the
// survivors and invokes purgeFn with it.
//
// removeStale is called once per stale origin ID found; the caller
// supplies it so the actual client-table deletion remains a host
// concern.
func Purge(
	clients []syncmodel.TrackedClient, now time.Time, maxInactivity time.Duration,
	removeStale func(originID string) error, purgeFn PurgeFunc,
) (purgedCount int, safeVersion int64, err error) {
	stale := FindStaleClients(clients, now, maxInactivity)
	staleSet := make(map[string]bool, len(stale))
	for _, id := range stale {
		staleSet[id] = true
		if removeStale != nil {
			if err := removeStale(id); err != nil {
				return 0, 0, syncerr.NewDatabase("remove stale client", err)
			}
		}
	}

	survivors := clients[:0:0]
	for _, c := range clients {
		if !staleSet[c.OriginID] {
			survivors = append(survivors, c)
		}
	}

	safeVersion = SafePurgeVersion(survivors)
	count, err := purgeFn(safeVersion)
	if err != nil {
		return 0, safeVersion, syncerr.NewDatabase("purge", err)
	}
	return count, safeVersion, nil
}

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

package tombstone

import (
	"testing"
	"time"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/stretchr/testify/require"
)

func TestSafePurgeVersionIsMinAcrossClients(t *testing.T) {
	clients := []syncmodel.TrackedClient{
		{OriginID: "A", LastSyncVersion: 50},
		{OriginID: "B", LastSyncVersion: 120},
	}
	require.Equal(t, int64(50), SafePurgeVersion(clients))
}

func TestSafePurgeVersionZeroWhenNoClients(t *testing.T) {
	require.Equal(t, int64(0), SafePurgeVersion(nil))
}

func TestFindStaleClientsUsesInactivityWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clients := []syncmodel.TrackedClient{
		{OriginID: "fresh", LastSyncTimestamp: now.Add(-1 * time.Hour).Format(syncmodel.TimestampLayout)},
		{OriginID: "stale", LastSyncTimestamp: now.Add(-100 * 24 * time.Hour).Format(syncmodel.TimestampLayout)},
	}
	stale := FindStaleClients(clients, now, InactivityLimit)
	require.Equal(t, []string{"stale"}, stale)
}

func TestRequiresFullResync(t *testing.T) {
	require.True(t, RequiresFullResync(5, 20))
	require.False(t, RequiresFullResync(20, 5))
	require.False(t, RequiresFullResync(20, 20))
}

func TestPurgeRemovesStaleClientsBeforeComputingSafeVersion(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clients := []syncmodel.TrackedClient{
		{OriginID: "A", LastSyncVersion: 50, LastSyncTimestamp: now.Add(-1 * time.Hour).Format(syncmodel.TimestampLayout)},
		{OriginID: "stale", LastSyncVersion: 1, LastSyncTimestamp: now.Add(-200 * 24 * time.Hour).Format(syncmodel.TimestampLayout)},
		{OriginID: "B", LastSyncVersion: 120, LastSyncTimestamp: now.Add(-1 * time.Hour).Format(syncmodel.TimestampLayout)},
	}

	var removed []string
	var purgedUpTo int64
	count, safe, err := Purge(clients, now, InactivityLimit,
		func(originID string) error { removed = append(removed, originID); return nil },
		func(v int64) (int, error) { purgedUpTo = v; return 2, nil },
	)
	require.NoError(t, err)
	require.Equal(t, []string{"stale"}, removed)
	require.Equal(t, int64(50), safe, "the stale client's low watermark must not pin the purge version")
	require.Equal(t, int64(50), purgedUpTo)
	require.Equal(t, 2, count)
}

func TestSafePurgeEligibility(t *testing.T) {
	// Clients {(A, 50), (B, 120)}: safe purge version is 50. Deletes at
	// versions 10 and 40 are eligible; a delete at version 80 is not.
	clients := []syncmodel.TrackedClient{
		{OriginID: "A", LastSyncVersion: 50},
		{OriginID: "B", LastSyncVersion: 120},
	}
	safe := SafePurgeVersion(clients)
	require.Equal(t, int64(50), safe)
	require.True(t, 10 <= safe)
	require.True(t, 40 <= safe)
	require.False(t, 80 <= safe)
}

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

package conflict

import (
	"testing"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/stretchr/testify/require"
)

func entry(origin string, version int64, ts string) syncmodel.Entry {
	return syncmodel.Entry{
		TableName: "orders",
		PKValue:   []byte(`{"id":1}`),
		Operation: syncmodel.OpUpdate,
		Payload:   []byte(`{"id":1}`),
		Origin:    origin,
		Version:   version,
		Timestamp: ts,
	}
}

func TestConflictsRequiresSameRecordDifferentOrigin(t *testing.T) {
	a := entry("A", 10, "2025-01-01T00:00:00.000Z")
	b := entry("B", 9, "2025-01-01T00:00:00.000Z")
	require.True(t, Conflicts(a, b))

	c := entry("A", 11, "2025-01-01T00:00:00.500Z")
	require.False(t, Conflicts(a, c), "same origin is never a conflict")
}

func TestLastWriteWinsTieBreakOnVersion(t *testing.T) {
	local := entry("A", 10, "2025-01-01T00:00:00.500Z")
	remote := entry("B", 9, "2025-01-01T00:00:00.500Z")

	winner, err := LastWriteWins{}.Resolve(local, remote)
	require.NoError(t, err)
	require.Equal(t, local, winner, "higher version wins on timestamp tie")
}

func TestLastWriteWinsIsSymmetric(t *testing.T) {
	cases := []struct{ local, remote syncmodel.Entry }{
		{entry("A", 10, "2025-01-01T00:00:00.500Z"), entry("B", 9, "2025-01-01T00:00:00.500Z")},
		{entry("A", 5, "2025-01-01T00:00:00.100Z"), entry("B", 5, "2025-01-01T00:00:01.000Z")},
		{entry("A", 5, "2025-01-01T00:00:00.100Z"), entry("B", 5, "2025-01-01T00:00:00.100Z")},
	}
	for _, c := range cases {
		w1, err := LastWriteWins{}.Resolve(c.local, c.remote)
		require.NoError(t, err)
		w2, err := LastWriteWins{}.Resolve(c.remote, c.local)
		require.NoError(t, err)
		require.Equal(t, w1, w2, "resolve must not depend on argument order")
	}
}

func TestServerAndClientWins(t *testing.T) {
	local := entry("A", 10, "2025-01-01T00:00:00.500Z")
	remote := entry("B", 1, "2024-01-01T00:00:00.000Z")

	w, err := ServerWins{}.Resolve(local, remote)
	require.NoError(t, err)
	require.Equal(t, remote, w)

	w, err = ClientWins{}.Resolve(local, remote)
	require.NoError(t, err)
	require.Equal(t, local, w)
}

func TestCustomCanDeclineWithUnresolvedConflict(t *testing.T) {
	local := entry("A", 10, "2025-01-01T00:00:00.500Z")
	remote := entry("B", 9, "2025-01-01T00:00:00.500Z")

	strat := CustomFunc(func(l, r syncmodel.Entry) (syncmodel.Entry, error) {
		return Unresolved(l, r)
	})
	_, err := strat.Resolve(local, remote)
	require.Error(t, err)
}

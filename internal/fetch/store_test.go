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

package fetch

import (
	"context"
	"testing"

	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// sliceStore serves a fixed log from memory.
type sliceStore struct {
	entries []syncmodel.Entry
	err     error
}

func (s *sliceStore) Append(context.Context, string, []byte, []byte, syncmodel.Operation, string, string) (int64, error) {
	return 0, nil
}

func (s *sliceStore) Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []syncmodel.Entry
	for _, e := range s.entries {
		if e.Version > fromVersion {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func logOf(n int) *sliceStore {
	s := &sliceStore{}
	for v := 1; v <= n; v++ {
		s.entries = append(s.entries, syncmodel.Entry{
			Version: int64(v), TableName: "orders", Operation: syncmodel.OpInsert,
			PKValue: []byte(`{"id":1}`), Payload: []byte(`{"id":1}`),
			Origin: "A", Timestamp: "2025-01-01T00:00:00.000Z",
		})
	}
	return s
}

func TestFetchBatchSetsHasMoreAndDropsOverfetch(t *testing.T) {
	b, err := FetchBatch(context.Background(), logOf(5), 0, 3, false)
	require.NoError(t, err)
	require.Len(t, b.Changes, 3)
	require.True(t, b.HasMore)
	require.Equal(t, int64(3), b.ToVersion)
}

func TestFetchBatchLastPageHasMoreFalse(t *testing.T) {
	b, err := FetchBatch(context.Background(), logOf(5), 3, 3, false)
	require.NoError(t, err)
	require.Len(t, b.Changes, 2)
	require.False(t, b.HasMore)
	require.Equal(t, int64(5), b.ToVersion)
}

func TestFetchBatchEmptyLogKeepsFromVersion(t *testing.T) {
	b, err := FetchBatch(context.Background(), logOf(0), 7, 3, false)
	require.NoError(t, err)
	require.Empty(t, b.Changes)
	require.False(t, b.HasMore)
	require.Equal(t, int64(7), b.ToVersion, "to_version equals from_version for an empty batch")
}

func TestFetchBatchComputesHashOnlyWhenVerifying(t *testing.T) {
	b, err := FetchBatch(context.Background(), logOf(2), 0, 10, false)
	require.NoError(t, err)
	require.Empty(t, b.Hash)

	b, err = FetchBatch(context.Background(), logOf(2), 0, 10, true)
	require.NoError(t, err)
	require.NotEmpty(t, b.Hash)
}

func TestFetchBatchWrapsStoreErrorAsDatabase(t *testing.T) {
	_, err := FetchBatch(context.Background(), &sliceStore{err: errors.New("disk on fire")}, 0, 3, false)
	require.Error(t, err)
	var dbErr *syncerr.Database
	require.ErrorAs(t, err, &dbErr)
}

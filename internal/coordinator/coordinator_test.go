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

package coordinator

import (
	"context"
	"testing"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/stretchr/testify/require"
)

type fakeSuppressor struct {
	suppressed bool
	calls      []bool
}

func (f *fakeSuppressor) Suppress(context.Context) error {
	f.suppressed = true
	f.calls = append(f.calls, true)
	return nil
}

func (f *fakeSuppressor) Unsuppress(context.Context) error {
	f.suppressed = false
	f.calls = append(f.calls, false)
	return nil
}

func mkLogEntry(version int64) syncmodel.Entry {
	return syncmodel.Entry{
		Version: version, TableName: "orders", Operation: syncmodel.OpInsert,
		PKValue: []byte(`{"id":1}`), Payload: []byte(`{"id":1}`), Origin: "B",
		Timestamp: "2025-01-01T00:00:00.000Z",
	}
}

func TestPullEmptyBatchLeavesWatermarkUnchanged(t *testing.T) {
	suppressor := &fakeSuppressor{}
	stored := int64(-1)
	result, err := Pull(context.Background(), "A", 5, BatchConfig{},
		suppressor,
		func(ctx context.Context, from int64, size int) (fetch.Batch, error) {
			return fetch.Batch{FromVersion: from, ToVersion: from, HasMore: false}, nil
		},
		func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) { return apply.Ok, nil },
		func(ctx context.Context, v int64) error { stored = v; return nil },
	)
	require.NoError(t, err)
	require.Equal(t, int64(5), result.To)
	require.Equal(t, int64(-1), stored, "watermark must not be persisted for an empty batch")
	require.False(t, suppressor.suppressed, "suppression must be released even when nothing was applied")
}

func TestPullBatchSizeOneProcessesTenEntriesInTenCycles(t *testing.T) {
	suppressor := &fakeSuppressor{}
	fetchCalls := 0
	result, err := Pull(context.Background(), "A", 0, BatchConfig{BatchSize: 1},
		suppressor,
		func(ctx context.Context, from int64, size int) (fetch.Batch, error) {
			fetchCalls++
			if from >= 10 {
				return fetch.Batch{FromVersion: from, ToVersion: from, HasMore: false}, nil
			}
			next := from + 1
			return fetch.Batch{
				Changes:     []syncmodel.Entry{mkLogEntry(next)},
				FromVersion: from, ToVersion: next, HasMore: next < 10,
			}, nil
		},
		func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) { return apply.Ok, nil },
		func(ctx context.Context, v int64) error { return nil },
	)
	require.NoError(t, err)
	require.Equal(t, 10, result.Applied)
	require.Equal(t, int64(10), result.To)
	require.Equal(t, 10, fetchCalls, "a 10-entry log at batch_size=1 takes exactly 10 fetch cycles")
	require.False(t, suppressor.suppressed)
}

func TestPullSuppressesAcrossWholeLoopAndReleasesOnError(t *testing.T) {
	suppressor := &fakeSuppressor{}
	calls := 0
	_, err := Pull(context.Background(), "A", 0, BatchConfig{},
		suppressor,
		func(ctx context.Context, from int64, size int) (fetch.Batch, error) {
			calls++
			return fetch.Batch{
				Changes:     []syncmodel.Entry{mkLogEntry(1)},
				FromVersion: from, ToVersion: 1, HasMore: false,
			}, nil
		},
		func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
			require.True(t, suppressor.suppressed, "apply must run with suppression held")
			return apply.Ok, assertErr
		},
		func(ctx context.Context, v int64) error { return nil },
	)
	require.Error(t, err)
	require.False(t, suppressor.suppressed, "suppression must be released on the error path")
}

var assertErr = &stubError{"boom"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }

func TestPushSendsNonEmptyBatchesAndPersistsWatermark(t *testing.T) {
	var sent [][]syncmodel.Entry
	var stored []int64
	result, err := Push(context.Background(), "A", 0, BatchConfig{BatchSize: 2},
		func(ctx context.Context, from int64, size int) (fetch.Batch, error) {
			if from >= 3 {
				return fetch.Batch{FromVersion: from, ToVersion: from}, nil
			}
			to := from + 2
			if to > 3 {
				to = 3
			}
			var changes []syncmodel.Entry
			for v := from + 1; v <= to; v++ {
				changes = append(changes, mkLogEntry(v))
			}
			return fetch.Batch{Changes: changes, FromVersion: from, ToVersion: to, HasMore: to < 3}, nil
		},
		func(ctx context.Context, entries []syncmodel.Entry) error {
			sent = append(sent, entries)
			return nil
		},
		func(ctx context.Context, v int64) error { stored = append(stored, v); return nil },
	)
	require.NoError(t, err)
	require.Equal(t, 3, result.Pushed)
	require.Equal(t, int64(3), result.To)
	require.Len(t, sent, 2)
	require.Equal(t, []int64{2, 3}, stored)
}

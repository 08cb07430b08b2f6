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

package dlq

import (
	"context"
	"testing"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	entries []Entry
}

func (f *fakeSink) Put(ctx context.Context, e Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestWrapDisabledPassesThrough(t *testing.T) {
	called := false
	inner := func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		called = true
		return apply.Ok, nil
	}
	wrapped := Wrap(inner, &fakeSink{}, Config{Enabled: false})
	_, err := wrapped(context.Background(), syncmodel.Entry{})
	require.NoError(t, err)
	require.True(t, called)
}

func TestWrapRoutesNonFKErrorToSink(t *testing.T) {
	boom := errors.New("constraint violation")
	inner := func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		return apply.Ok, boom
	}
	sink := &fakeSink{}
	wrapped := Wrap(inner, sink, Config{Enabled: true})
	outcome, err := wrapped(context.Background(), syncmodel.Entry{TableName: "orders", Version: 7})
	require.NoError(t, err, "a dead-lettered entry must not abort the batch")
	require.Equal(t, apply.Ok, outcome)
	require.Len(t, sink.entries, 1)
	require.Equal(t, boom, sink.entries[0].Cause)
	require.Equal(t, int64(7), sink.entries[0].Source.Version)
}

func TestWrapLeavesFKDeferralUnaffected(t *testing.T) {
	inner := func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		return apply.FkDeferred, nil
	}
	sink := &fakeSink{}
	wrapped := Wrap(inner, sink, Config{Enabled: true})
	outcome, err := wrapped(context.Background(), syncmodel.Entry{})
	require.NoError(t, err)
	require.Equal(t, apply.FkDeferred, outcome)
	require.Empty(t, sink.entries, "FK deferrals must not be dead-lettered")
}

func TestWrapSinkFailurePropagatesOriginalError(t *testing.T) {
	boom := errors.New("boom")
	inner := func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		return apply.Ok, boom
	}
	failingSink := sinkFunc(func(ctx context.Context, e Entry) error {
		return errors.New("sink down")
	})
	wrapped := Wrap(inner, failingSink, Config{Enabled: true})
	_, err := wrapped(context.Background(), syncmodel.Entry{})
	require.Equal(t, boom, err)
}

type sinkFunc func(ctx context.Context, e Entry) error

func (f sinkFunc) Put(ctx context.Context, e Entry) error { return f(ctx, e) }

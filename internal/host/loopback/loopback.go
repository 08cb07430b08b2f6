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

// Package loopback is a reference host adapter that keeps a replica's
// change log entirely in memory and wires two such replicas together
// without a network hop. It exists for cmd/replisyncd's "demo"
// subcommand and for coordinator-level integration tests that want a
// real fetch.ChangeLogStore without a database.
package loopback

import (
	"context"
	"sync"

	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// Store is an in-memory fetch.ChangeLogStore. A zero Store is ready
// to use. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []syncmodel.Entry
}

var _ fetch.ChangeLogStore = (*Store)(nil)

// Append assigns the next version (len(entries)+1, global to this
// store) and records the entry.
func (s *Store) Append(
	ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
	op syncmodel.Operation, origin, timestamp string,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := int64(len(s.entries)) + 1
	s.entries = append(s.entries, syncmodel.Entry{
		Version: version, TableName: tableName, PKValue: pkJSON, Operation: op,
		Payload: payloadJSON, Origin: origin, Timestamp: timestamp,
	})
	return version, nil
}

// Fetch returns up to limit entries with Version > fromVersion.
func (s *Store) Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

// AppendEntry is a test/demo convenience that bypasses Append's
// caller-supplied-fields signature when the caller already has a
// fully-formed syncmodel.Entry (e.g. one produced by another Store's
// Fetch, during a loopback push/pull).
func (s *Store) AppendEntry(e syncmodel.Entry) (int64, error) {
	return s.Append(context.Background(), e.TableName, e.PKValue, e.Payload, e.Operation, e.Origin, e.Timestamp)
}

// Link returns the FetchRemoteFunc/SendRemoteFunc pair that lets a
// coordinator.Pull/Push on one side read from and write to remote's
// Store directly, with no transport in between -- the loopback this
// package is named for.
func Link(remote *Store) (
	fetchRemote func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error),
	sendRemote func(ctx context.Context, entries []syncmodel.Entry) error,
) {
	fetchRemote = func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error) {
		return fetch.FetchBatch(ctx, remote, fromVersion, size, false)
	}
	sendRemote = func(ctx context.Context, entries []syncmodel.Entry) error {
		for _, e := range entries {
			if _, err := remote.AppendEntry(e); err != nil {
				return errors.Wrap(err, "loopback: send failed")
			}
		}
		return nil
	}
	return fetchRemote, sendRemote
}

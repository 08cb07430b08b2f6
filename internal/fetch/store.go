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

// Package fetch paginates a replica's change log into ordered Batches
// and, when asked, computes the verification hash for the page.
package fetch

import (
	"context"

	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/xhash"
)

// ChangeLogStore is the external contract the engine consumes for
// reading a replica's change log. Concrete implementations (a
// specific database's driver, schema, and trigger layer) are host
// concern; see internal/host for reference adapters.
type ChangeLogStore interface {
	// Append records a local write in the change log, returning the
	// version assigned to it. Used by the host's trigger layer, not by
	// the kernel's pull/apply path.
	Append(ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
		op syncmodel.Operation, origin, timestamp string) (version int64, err error)

	// Fetch returns up to limit entries with Version > fromVersion, in
	// ascending version order.
	Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error)
}

// Batch is an ordered page of the change log.
type Batch struct {
	Changes     []syncmodel.Entry
	FromVersion int64
	ToVersion   int64
	HasMore     bool
	Hash        string // only set when verification is requested
}

// FetchBatch asks store for up to size+1 entries after fromVersion; if
// more than size come back, the last is dropped and HasMore is set.
// When verify is true, the batch hash is computed over the returned
// Changes.
func FetchBatch(
	ctx context.Context, store ChangeLogStore, fromVersion int64, size int, verify bool,
) (Batch, error) {
	if size <= 0 {
		size = 1000
	}
	rows, err := store.Fetch(ctx, fromVersion, size+1)
	if err != nil {
		return Batch{}, syncerr.NewDatabase("fetch", err)
	}

	hasMore := false
	if len(rows) > size {
		rows = rows[:size]
		hasMore = true
	}

	toVersion := fromVersion
	if len(rows) > 0 {
		toVersion = rows[len(rows)-1].Version
	}

	b := Batch{
		Changes:     rows,
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		HasMore:     hasMore,
	}
	if verify {
		b.Hash = xhash.BatchHash(rows)
	}
	return b, nil
}

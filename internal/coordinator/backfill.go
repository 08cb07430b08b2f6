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
	"errors"

	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
)

// Backfiller performs an out-of-band full-table snapshot replication
// when incremental sync cannot catch a client up. The engine only
// signals that a resync is needed; actually producing and replaying a
// snapshot is host concern.
type Backfiller interface {
	// BackfillInto streams a full snapshot of the replica's current
	// state to emit, in any order, then returns. Entries it produces
	// should carry Version 0; the caller resets watermarks to the
	// backfill's completion point afterward.
	BackfillInto(ctx context.Context, emit func(syncmodel.Entry) error) error
}

// RunBackfill invokes b and, on success, returns the version the
// replica's watermark should be reset to: resumeFrom is the version a
// subsequent incremental Pull should use as its starting point. A host
// calls it after a Pull fails with *syncerr.FullResyncRequired;
// cmd/replisyncd's sync command does not call it and returns that
// error instead.
func RunBackfill(
	ctx context.Context, b Backfiller, emit func(syncmodel.Entry) error, resumeFrom int64,
) (int64, error) {
	if err := b.BackfillInto(ctx, emit); err != nil {
		return 0, err
	}
	return resumeFrom, nil
}

// IsFullResyncRequired reports whether err signals that a Backfiller
// must run before incremental sync can proceed.
func IsFullResyncRequired(err error) (*syncerr.FullResyncRequired, bool) {
	var fr *syncerr.FullResyncRequired
	ok := errors.As(err, &fr)
	return fr, ok
}

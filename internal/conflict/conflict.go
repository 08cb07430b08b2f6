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

// Package conflict implements the conflict detector and resolver: two
// entries are in conflict iff they name the same table and primary
// key but come from different origins. Resolution is always local,
// deterministic, and keyed on the entries themselves rather than on
// any stored row state.
package conflict

import (
	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
)

// Conflicts reports whether local and remote are in conflict: same
// table_name and pk_value, different origin.
func Conflicts(local, remote syncmodel.Entry) bool {
	return local.SameRecord(remote) && local.Origin != remote.Origin
}

// Strategy resolves a conflict between a locally-observed entry and
// an incoming remote entry for the same record.
type Strategy interface {
	// Resolve returns the entry that should be treated as the winner.
	// A Strategy that cannot decide returns a *syncerr.UnresolvedConflict
	// error instead (only meaningful for Custom).
	Resolve(local, remote syncmodel.Entry) (syncmodel.Entry, error)
}

// LastWriteWins compares (timestamp, version) lexicographically; the
// higher pair wins. Ties break on version, which keeps the result
// deterministic even when two origins' clocks are skewed.
type LastWriteWins struct{}

// Resolve implements Strategy. Resolve(a, b) == Resolve(b, a) for any
// pair of entries: ties on (timestamp, version) fall back to
// comparing Origin, which is the only remaining order-independent
// signal the two entries carry.
func (LastWriteWins) Resolve(local, remote syncmodel.Entry) (syncmodel.Entry, error) {
	if local.Timestamp == remote.Timestamp && local.Version == remote.Version {
		if local.Origin <= remote.Origin {
			return local, nil
		}
		return remote, nil
	}
	if remote.Before(local) {
		return local, nil
	}
	return remote, nil
}

// ServerWins always resolves in favor of the remote (server-originated)
// side.
type ServerWins struct{}

// Resolve implements Strategy.
func (ServerWins) Resolve(_, remote syncmodel.Entry) (syncmodel.Entry, error) {
	return remote, nil
}

// ClientWins always resolves in favor of the local (client-originated)
// side.
type ClientWins struct{}

// Resolve implements Strategy.
func (ClientWins) Resolve(local, _ syncmodel.Entry) (syncmodel.Entry, error) {
	return local, nil
}

// CustomFunc adapts a plain function to the Strategy interface. The
// function may return a *syncerr.UnresolvedConflict when it declines
// to pick a side.
type CustomFunc func(local, remote syncmodel.Entry) (syncmodel.Entry, error)

// Resolve implements Strategy.
func (f CustomFunc) Resolve(local, remote syncmodel.Entry) (syncmodel.Entry, error) {
	return f(local, remote)
}

// Unresolved is a convenience constructor a CustomFunc can return when
// it cannot decide a winner.
func Unresolved(local, remote syncmodel.Entry) (syncmodel.Entry, error) {
	return syncmodel.Entry{}, &syncerr.UnresolvedConflict{Local: local, Remote: remote}
}

// Default is the engine-wide default strategy.
func Default() Strategy { return LastWriteWins{} }

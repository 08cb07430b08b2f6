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
	"context"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	log "github.com/sirupsen/logrus"
)

// LookupLocalFunc resolves the latest locally-observed entry for
// (tableName, pkValue). ok is false when the local store has no
// observed state for the record, in which case there is nothing to
// conflict with.
type LookupLocalFunc func(ctx context.Context, tableName string, pkValue []byte) (syncmodel.Entry, bool, error)

// Guard decorates applyOne with conflict detection. Before a remote
// entry is applied, the record's latest locally-observed entry is
// looked up; when the two are in conflict, strategy picks the winner.
// A remote win applies as usual. A local win drops the remote entry
// and reports Ok without invoking applyOne, since the record already
// holds the winning state. A strategy that declines to pick a side
// surfaces its error, aborting the batch.
//
// Resolution compares the entries themselves, never stored row data,
// so lookup only needs to return log entries.
func Guard(strategy Strategy, lookup LookupLocalFunc, applyOne apply.ApplyOneFunc) apply.ApplyOneFunc {
	if strategy == nil || lookup == nil {
		return applyOne
	}
	return func(ctx context.Context, remote syncmodel.Entry) (apply.Outcome, error) {
		local, ok, err := lookup(ctx, remote.TableName, remote.PKValue)
		if err != nil {
			return apply.Ok, err
		}
		if !ok || !Conflicts(local, remote) {
			return applyOne(ctx, remote)
		}

		winner, err := strategy.Resolve(local, remote)
		if err != nil {
			return apply.Ok, err
		}
		if winner.Origin == local.Origin && winner.Version == local.Version {
			log.WithFields(log.Fields{
				"table": remote.TableName, "remote_origin": remote.Origin,
				"remote_version": remote.Version,
			}).Debug("conflict: local entry wins, dropping remote")
			return apply.Ok, nil
		}
		return applyOne(ctx, remote)
	}
}

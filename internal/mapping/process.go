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

package mapping

import (
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/xhash"
	"github.com/pkg/errors"
)

// StateStore resolves and persists the two per-mapping tracking
// records. The engine is agnostic to how a host implements this;
// internal/host adapters back it with concrete storage.
type StateStore interface {
	GetMappingState(mappingID string) (syncmodel.MappingState, error)
	PutMappingState(syncmodel.MappingState) error
	GetRecordHash(mappingID string, pkValue []byte) (syncmodel.RecordHash, bool, error)
	PutRecordHash(syncmodel.RecordHash) error
}

// Outcome records what Process did with one source entry.
type Outcome struct {
	Entries []syncmodel.Entry
	Skipped SkipReason
}

// Process runs the full per-mapping pipeline for one phase over a
// batch of source entries: find the matching mapping, consult
// ShouldSync, apply the transform, and update per-mapping tracking
// state afterward.
//
// now supplies the TimestampLayout-formatted wall-clock value used to
// stamp mapping_state/record_hash updates; callers pass the
// coordinator's notion of "now" so Process stays deterministic and
// testable.
func Process(
	cfg Config,
	phase Direction,
	entries []syncmodel.Entry,
	store StateStore,
	now string,
) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(entries))
	maxVersion := make(map[string]int64)
	synced := make(map[string]int64)

	for _, e := range entries {
		m, ok := Find(cfg, e.TableName, phase)
		if !ok {
			if cfg.effectiveUnmapped() == UnmappedPassthrough {
				outcomes = append(outcomes, Outcome{Entries: []syncmodel.Entry{e}})
				continue
			}
			outcomes = append(outcomes, Outcome{Skipped: SkipNoMapping})
			continue
		}

		state, err := store.GetMappingState(m.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "mapping: loading state for %q", m.ID)
		}

		due, err := ShouldSync(m, e, state,
			func(mappingID string, pk []byte) (string, bool) {
				rh, ok, err := store.GetRecordHash(mappingID, pk)
				if err != nil || !ok {
					return "", false
				}
				return rh.PayloadHash, true
			},
			func(mappingID string, pk []byte) (string, bool) {
				// There is no per-record last-sync timestamp distinct from
				// record_hash.SyncedAt; hosts using the "timestamp" strategy
				// supply one via a StateStore that overlays this lookup.
				rh, ok, err := store.GetRecordHash(mappingID, pk)
				if err != nil || !ok {
					return "", false
				}
				return rh.SyncedAt, true
			},
		)
		if err != nil {
			return nil, err
		}
		if !due {
			outcomes = append(outcomes, Outcome{Skipped: SkipNotDue})
			continue
		}

		out, reason, err := Apply(m, e)
		if err != nil {
			return nil, errors.Wrapf(err, "mapping: applying %q", m.ID)
		}
		outcomes = append(outcomes, Outcome{Entries: out, Skipped: reason})
		if reason != "" {
			continue
		}

		if e.Version > maxVersion[m.ID] {
			maxVersion[m.ID] = e.Version
		}
		synced[m.ID]++

		if m.Tracking.effective() == TrackingHash && !e.IsDelete() {
			hash, err := xhash.PayloadHash(e.Payload)
			if err != nil {
				return nil, err
			}
			if err := store.PutRecordHash(syncmodel.RecordHash{
				MappingID: m.ID, SourcePK: e.PKValue, PayloadHash: hash, SyncedAt: now,
			}); err != nil {
				return nil, err
			}
		}
	}

	for mappingID, count := range synced {
		state, err := store.GetMappingState(mappingID)
		if err != nil {
			return nil, err
		}
		if v := maxVersion[mappingID]; v > state.LastSyncedVersion {
			state.LastSyncedVersion = v
		}
		state.MappingID = mappingID
		state.RecordsSynced += count
		state.LastSyncTimestamp = now
		if err := store.PutMappingState(state); err != nil {
			return nil, err
		}
	}

	return outcomes, nil
}

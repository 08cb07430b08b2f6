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
	"encoding/json"
	"testing"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/stretchr/testify/require"
)

func mkEntry(table string, pk, payload string, op syncmodel.Operation) syncmodel.Entry {
	e := syncmodel.Entry{
		Version: 1, TableName: table, PKValue: json.RawMessage(pk),
		Operation: op, Origin: "A", Timestamp: "2025-01-01T00:00:00.000Z",
	}
	if payload != "" {
		e.Payload = json.RawMessage(payload)
	}
	return e
}

func TestFindRuleMatchesFirstCompatibleDirection(t *testing.T) {
	cfg := Config{Mappings: []TableMapping{
		{ID: "m1", SourceTable: "orders", Direction: DirectionPull, Enabled: true},
		{ID: "m2", SourceTable: "orders", Direction: DirectionBoth, Enabled: true},
	}}
	m, ok := Find(cfg, "orders", DirectionPush)
	require.True(t, ok)
	require.Equal(t, "m2", m.ID, "m1 is pull-only and must be skipped for a push phase")
}

func TestFindRuleSkipsDisabledMappings(t *testing.T) {
	cfg := Config{Mappings: []TableMapping{
		{ID: "m1", SourceTable: "orders", Direction: DirectionBoth, Enabled: false},
	}}
	_, ok := Find(cfg, "orders", DirectionPush)
	require.False(t, ok)
}

func TestApplyExcludedColumnsCaseInsensitive(t *testing.T) {
	m := TableMapping{ID: "m1", SourceTable: "orders", ExcludedColumns: []string{"Internal_Note"}}
	e := mkEntry("orders", `{"id":1}`, `{"id":1,"total":9.5,"internal_note":"secret"}`, syncmodel.OpInsert)
	out, reason, err := Apply(m, e)
	require.NoError(t, err)
	require.Empty(t, reason)
	require.Len(t, out, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(out[0].Payload, &payload))
	require.NotContains(t, payload, "internal_note")
	require.Equal(t, 9.5, payload["total"])
}

func TestApplyPKMapping(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "orders",
		PKMapping: &PKMapping{SourceColumn: "order_id", TargetColumn: "id"},
	}
	e := mkEntry("orders", `{"order_id":42}`, `{"order_id":42,"total":1}`, syncmodel.OpInsert)
	out, _, err := Apply(m, e)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":42}`, string(out[0].PKValue))
}

func TestApplyColumnMappingsNoneConstantLQL(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "orders",
		ColumnMappings: []ColumnMapping{
			{Source: "name", Target: "full_name", Transform: TransformNone},
			{Target: "source_system", Transform: TransformConstant, Value: json.RawMessage(`"legacy"`)},
			{Source: "name", Target: "upper_name", Transform: TransformLQL, LQL: "upper(name)"},
		},
	}
	e := mkEntry("orders", `{"id":1}`, `{"name":"alice"}`, syncmodel.OpInsert)
	out, _, err := Apply(m, e)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(out[0].Payload, &payload))
	require.Equal(t, "alice", payload["full_name"])
	require.Equal(t, "legacy", payload["source_system"])
	require.Equal(t, "ALICE", payload["upper_name"])
}

func TestApplyLQLNameComposition(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "people",
		ColumnMappings: []ColumnMapping{
			{Target: "Name", Transform: TransformLQL,
				LQL: `concat(upper(left(First,1)), lower(substring(First,2)), ' ', First |> length())`},
		},
	}
	e := mkEntry("people", `{"id":1}`, `{"First":"ada","Last":"LOVELACE"}`, syncmodel.OpInsert)
	out, _, err := Apply(m, e)
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"Ada 3"}`, string(out[0].Payload))
}

func TestApplyLQLTransformFallsBackToRawOnError(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "orders",
		ColumnMappings: []ColumnMapping{
			{Source: "name", Target: "name", Transform: TransformLQL, LQL: "upper("},
		},
	}
	e := mkEntry("orders", `{"id":1}`, `{"name":"alice"}`, syncmodel.OpInsert)
	out, _, err := Apply(m, e)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(out[0].Payload, &payload))
	require.Equal(t, "alice", payload["name"], "a broken lql expression must fall back to the raw source value")
}

func TestApplyMultiTarget(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "orders", IsMultiTarget: true,
		Targets: []Target{
			{TargetTable: "orders_archive", ColumnMappings: []ColumnMapping{{Source: "total", Target: "total", Transform: TransformNone}}},
			{TargetTable: "orders_summary", ColumnMappings: []ColumnMapping{{Target: "kind", Transform: TransformConstant, Value: json.RawMessage(`"order"`)}}},
		},
	}
	e := mkEntry("orders", `{"id":1}`, `{"total":5}`, syncmodel.OpInsert)
	out, _, err := Apply(m, e)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "orders_archive", out[0].TableName)
	require.Equal(t, "orders_summary", out[1].TableName)
	require.JSONEq(t, `{"id":1}`, string(out[0].PKValue))
	require.JSONEq(t, `{"id":1}`, string(out[1].PKValue))
}

func TestApplyDeleteNeverFiltered(t *testing.T) {
	m := TableMapping{
		ID: "m1", SourceTable: "orders",
		Filter: &Filter{LQL: "active"},
	}
	e := mkEntry("orders", `{"id":1}`, "", syncmodel.OpDelete)
	out, reason, err := Apply(m, e)
	require.NoError(t, err)
	require.Empty(t, reason)
	require.Len(t, out, 1)
	require.Nil(t, out[0].Payload)
}

func TestApplyFilterRejectsFalsy(t *testing.T) {
	m := TableMapping{ID: "m1", SourceTable: "orders", Filter: &Filter{LQL: "active"}}
	e := mkEntry("orders", `{"id":1}`, `{"active":false}`, syncmodel.OpInsert)
	out, reason, err := Apply(m, e)
	require.NoError(t, err)
	require.Equal(t, SkipFilterRejected, reason)
	require.Nil(t, out)
}

func TestApplyFilterAllowsTruthy(t *testing.T) {
	m := TableMapping{ID: "m1", SourceTable: "orders", Filter: &Filter{LQL: "active"}}
	e := mkEntry("orders", `{"id":1}`, `{"active":true}`, syncmodel.OpInsert)
	_, reason, err := Apply(m, e)
	require.NoError(t, err)
	require.Empty(t, reason)
}

// fakeStore is an in-memory StateStore for Process tests.
type fakeStore struct {
	mapping map[string]syncmodel.MappingState
	hashes  map[string]syncmodel.RecordHash
}

func newFakeStore() *fakeStore {
	return &fakeStore{mapping: map[string]syncmodel.MappingState{}, hashes: map[string]syncmodel.RecordHash{}}
}

func (s *fakeStore) GetMappingState(id string) (syncmodel.MappingState, error) {
	return s.mapping[id], nil
}
func (s *fakeStore) PutMappingState(st syncmodel.MappingState) error {
	s.mapping[st.MappingID] = st
	return nil
}
func (s *fakeStore) GetRecordHash(mappingID string, pk []byte) (syncmodel.RecordHash, bool, error) {
	rh, ok := s.hashes[mappingID+string(pk)]
	return rh, ok, nil
}
func (s *fakeStore) PutRecordHash(rh syncmodel.RecordHash) error {
	s.hashes[rh.MappingID+string(rh.SourcePK)] = rh
	return nil
}

func TestProcessVersionTrackingSkipsAlreadySynced(t *testing.T) {
	cfg := Config{Mappings: []TableMapping{
		{ID: "m1", SourceTable: "orders", Direction: DirectionBoth, Enabled: true, Tracking: TrackingVersion},
	}}
	store := newFakeStore()
	store.mapping["m1"] = syncmodel.MappingState{MappingID: "m1", LastSyncedVersion: 5}

	e := mkEntry("orders", `{"id":1}`, `{"x":1}`, syncmodel.OpInsert)
	e.Version = 3
	outs, err := Process(cfg, DirectionPull, []syncmodel.Entry{e}, store, "2025-01-02T00:00:00.000Z")
	require.NoError(t, err)
	require.Equal(t, SkipNotDue, outs[0].Skipped)
}

func TestProcessUpdatesMappingStateAfterBatch(t *testing.T) {
	cfg := Config{Mappings: []TableMapping{
		{ID: "m1", SourceTable: "orders", Direction: DirectionBoth, Enabled: true, Tracking: TrackingVersion},
	}}
	store := newFakeStore()
	e1 := mkEntry("orders", `{"id":1}`, `{"x":1}`, syncmodel.OpInsert)
	e1.Version = 1
	e2 := mkEntry("orders", `{"id":2}`, `{"x":2}`, syncmodel.OpInsert)
	e2.Version = 2

	_, err := Process(cfg, DirectionPull, []syncmodel.Entry{e1, e2}, store, "2025-01-02T00:00:00.000Z")
	require.NoError(t, err)

	state := store.mapping["m1"]
	require.Equal(t, int64(2), state.LastSyncedVersion)
	require.Equal(t, int64(2), state.RecordsSynced)
	require.Equal(t, "2025-01-02T00:00:00.000Z", state.LastSyncTimestamp)
}

func TestProcessHashTrackingUpsertsRecordHash(t *testing.T) {
	cfg := Config{Mappings: []TableMapping{
		{ID: "m1", SourceTable: "orders", Direction: DirectionBoth, Enabled: true, Tracking: TrackingHash},
	}}
	store := newFakeStore()
	e := mkEntry("orders", `{"id":1}`, `{"x":1}`, syncmodel.OpInsert)

	_, err := Process(cfg, DirectionPull, []syncmodel.Entry{e}, store, "2025-01-02T00:00:00.000Z")
	require.NoError(t, err)
	require.Contains(t, store.hashes, "m1"+`{"id":1}`)

	// A second identical payload must now be skipped as not-due.
	outs, err := Process(cfg, DirectionPull, []syncmodel.Entry{e}, store, "2025-01-03T00:00:00.000Z")
	require.NoError(t, err)
	require.Equal(t, SkipNotDue, outs[0].Skipped)
}

func TestProcessUnmappedTableStrictSkips(t *testing.T) {
	cfg := Config{UnmappedTableBehavior: UnmappedStrict}
	store := newFakeStore()
	e := mkEntry("widgets", `{"id":1}`, `{"x":1}`, syncmodel.OpInsert)
	outs, err := Process(cfg, DirectionPull, []syncmodel.Entry{e}, store, "2025-01-01T00:00:00.000Z")
	require.NoError(t, err)
	require.Equal(t, SkipNoMapping, outs[0].Skipped)
}

func TestProcessUnmappedTablePassthrough(t *testing.T) {
	cfg := Config{UnmappedTableBehavior: UnmappedPassthrough}
	store := newFakeStore()
	e := mkEntry("widgets", `{"id":1}`, `{"x":1}`, syncmodel.OpInsert)
	outs, err := Process(cfg, DirectionPull, []syncmodel.Entry{e}, store, "2025-01-01T00:00:00.000Z")
	require.NoError(t, err)
	require.Empty(t, outs[0].Skipped)
	require.Equal(t, "widgets", outs[0].Entries[0].TableName)
}

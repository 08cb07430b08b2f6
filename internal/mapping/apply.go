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
	"strings"

	"github.com/cockroachdb/replistream/internal/lql"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/xhash"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Apply translates one source entry into zero or more target entries
// under mapping m. The returned reason is non-empty, and entries nil,
// when the entry was deliberately skipped rather than failing
// outright.
func Apply(m TableMapping, e syncmodel.Entry) ([]syncmodel.Entry, SkipReason, error) {
	srcPayload, err := decodeObject(e.Payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "mapping: decoding source payload")
	}

	if m.Filter != nil && !e.IsDelete() {
		pass, err := evalFilter(m.Filter.LQL, srcPayload)
		if err != nil {
			// Fail open on filter errors: a broken filter must not
			// silently drop data it was never meant to gate.
			log.WithFields(log.Fields{"mapping_id": m.ID, "error": err}).
				Warn("mapping: filter evaluation failed, entry will sync")
		} else if !pass {
			return nil, SkipFilterRejected, nil
		}
	}

	targetPK, err := mapPK(m.PKMapping, e.PKValue)
	if err != nil {
		return nil, "", err
	}

	if e.IsDelete() {
		out := e
		out.TableName = m.effectiveTargetTable()
		out.PKValue = targetPK
		out.Payload = nil
		return []syncmodel.Entry{out}, "", nil
	}

	if m.IsMultiTarget {
		entries := make([]syncmodel.Entry, 0, len(m.Targets))
		for _, target := range m.Targets {
			payload, err := buildPayload(target.ColumnMappings, nil, srcPayload, m.ID)
			if err != nil {
				return nil, "", err
			}
			out := e
			out.TableName = target.TargetTable
			out.PKValue = targetPK
			out.Payload = payload
			entries = append(entries, out)
		}
		return entries, "", nil
	}

	payload, err := buildPayload(m.ColumnMappings, m.ExcludedColumns, srcPayload, m.ID)
	if err != nil {
		return nil, "", err
	}
	out := e
	out.TableName = m.effectiveTargetTable()
	out.PKValue = targetPK
	out.Payload = payload
	return []syncmodel.Entry{out}, "", nil
}

// buildPayload builds one target payload: an empty column_mappings
// list means "copy everything but the excluded columns"; otherwise
// each ColumnMapping computes its own target column from a transform.
func buildPayload(cols []ColumnMapping, excluded []string, src map[string]any, mappingID string) (json.RawMessage, error) {
	if len(cols) == 0 {
		out := excludeColumns(src, excluded)
		return encodeObject(out)
	}

	out := make(map[string]any, len(cols))
	for _, c := range cols {
		switch c.Transform {
		case TransformConstant:
			var v any
			if len(c.Value) > 0 {
				if err := json.Unmarshal(c.Value, &v); err != nil {
					return nil, errors.Wrapf(err, "mapping: constant value for column %q", c.Target)
				}
			}
			out[c.Target] = v

		case TransformLQL:
			v, err := lql.Eval(c.LQL, lql.Record(src))
			if err != nil {
				log.WithFields(log.Fields{"mapping_id": mappingID, "target": c.Target, "error": err}).
					Warn("mapping: lql transform failed, falling back to raw source column")
				if raw, ok := lookupColumn(src, c.Source); ok {
					out[c.Target] = raw
				}
				continue
			}
			out[c.Target] = v

		default: // TransformNone and unrecognized values behave as "none".
			if raw, ok := lookupColumn(src, c.Source); ok {
				out[c.Target] = raw
			}
		}
	}
	return encodeObject(out)
}

// lookupColumn finds a source column's value, case-sensitively first
// and then case-insensitively, mirroring LQL's own bare-reference
// resolution.
func lookupColumn(src map[string]any, name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	if v, ok := src[name]; ok {
		return v, true
	}
	lower := strings.ToLower(name)
	for k, v := range src {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

// excludeColumns copies src, dropping any key matching excluded
// case-insensitively.
func excludeColumns(src map[string]any, excluded []string) map[string]any {
	if len(excluded) == 0 {
		return src
	}
	skip := make(map[string]bool, len(excluded))
	for _, c := range excluded {
		skip[strings.ToLower(c)] = true
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		if skip[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	return out
}

// mapPK rewrites a single-column PK. A nil pk carries the source PK
// through unchanged.
func mapPK(pk *PKMapping, srcPK json.RawMessage) (json.RawMessage, error) {
	if pk == nil {
		return xhash.Canonical(srcPK)
	}
	obj, err := decodeObject(srcPK)
	if err != nil {
		return nil, errors.Wrap(err, "mapping: decoding source PK")
	}
	v, ok := lookupColumn(obj, pk.SourceColumn)
	if !ok {
		return nil, errors.Errorf("mapping: pk_mapping source_column %q not found in PK", pk.SourceColumn)
	}
	return encodeObject(map[string]any{pk.TargetColumn: v})
}

func evalFilter(expr string, src map[string]any) (bool, error) {
	v, err := lql.Eval(expr, lql.Record(src))
	if err != nil {
		return false, err
	}
	return isTruthy(v), nil
}

// isTruthy mirrors the permissive truthiness LQL's host config relies
// on: nil, false, 0, "", and the string "false" are falsy; everything
// else is truthy.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	default:
		return true
	}
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeObject(m map[string]any) (json.RawMessage, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "mapping: encoding target payload")
	}
	return xhash.Canonical(raw)
}

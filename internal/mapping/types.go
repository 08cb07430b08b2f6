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

// Package mapping translates a source-schema change log Entry into
// one or more target-schema entries: table/column rewrites,
// exclusions, per-mapping filters, multi-target fan-out, and the
// tracking strategies that decide whether a mapping needs to run at
// all for a given entry. The config is a JSON list of rules resolved
// by first match.
package mapping

import "encoding/json"

// Direction selects which sync phase a TableMapping applies to.
type Direction string

// The three directions a mapping can be scoped to.
const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
	DirectionBoth Direction = "both"
)

// Applies reports whether the mapping's direction is compatible with
// the current sync phase. Unknown/empty directions fall back to
// DirectionPush.
func (d Direction) Applies(phase Direction) bool {
	eff := d
	switch eff {
	case DirectionPush, DirectionPull, DirectionBoth:
	default:
		eff = DirectionPush
	}
	return eff == DirectionBoth || eff == phase
}

// UnmappedTableBehavior governs what happens when no TableMapping
// matches an entry's source table.
type UnmappedTableBehavior string

// The two unmapped-table behaviors.
const (
	UnmappedStrict      UnmappedTableBehavior = "strict"
	UnmappedPassthrough UnmappedTableBehavior = "passthrough"
)

// TrackingStrategy selects how ShouldSync decides whether a mapping
// needs to process a given entry.
type TrackingStrategy string

// The four tracking strategies.
const (
	TrackingVersion   TrackingStrategy = "version"
	TrackingHash      TrackingStrategy = "hash"
	TrackingTimestamp TrackingStrategy = "timestamp"
	TrackingExternal  TrackingStrategy = "external"
)

// effective falls back to TrackingVersion for an unknown/empty value.
func (s TrackingStrategy) effective() TrackingStrategy {
	switch s {
	case TrackingVersion, TrackingHash, TrackingTimestamp, TrackingExternal:
		return s
	default:
		return TrackingVersion
	}
}

// TransformKind selects how a ColumnMapping computes its target value.
type TransformKind string

// The three transform kinds.
const (
	TransformNone     TransformKind = "none"
	TransformConstant TransformKind = "constant"
	TransformLQL      TransformKind = "lql"
)

// ColumnMapping rewrites one source column into one target column.
type ColumnMapping struct {
	Source    string          `json:"source,omitempty"`
	Target    string          `json:"target"`
	Transform TransformKind   `json:"transform"`
	Value     json.RawMessage `json:"value,omitempty"`
	LQL       string          `json:"lql,omitempty"`
}

// Target is one output schema in a multi-target mapping: its own
// target table and column set, sharing the parent mapping's operation
// and PK rewrite.
type Target struct {
	TargetTable    string          `json:"target_table"`
	ColumnMappings []ColumnMapping `json:"column_mappings,omitempty"`
}

// PKMapping rewrites a single-column primary key.
type PKMapping struct {
	SourceColumn string `json:"source_column"`
	TargetColumn string `json:"target_column"`
}

// TableMapping is one rule in the mapping config.
type TableMapping struct {
	ID              string           `json:"id"`
	SourceTable     string           `json:"source_table"`
	TargetTable     string           `json:"target_table,omitempty"`
	Direction       Direction        `json:"direction"`
	Enabled         bool             `json:"enabled"`
	PKMapping       *PKMapping       `json:"pk_mapping,omitempty"`
	ColumnMappings  []ColumnMapping  `json:"column_mappings,omitempty"`
	ExcludedColumns []string         `json:"excluded_columns,omitempty"`
	Filter          *Filter          `json:"filter,omitempty"`
	Tracking        TrackingStrategy `json:"tracking"`
	IsMultiTarget   bool             `json:"is_multi_target,omitempty"`
	Targets         []Target         `json:"targets,omitempty"`
}

// Filter gates whether a mapping runs for a given entry.
type Filter struct {
	LQL string `json:"lql"`
}

// effectiveTargetTable returns the table name an output entry should
// carry: the explicit TargetTable, or the source table unchanged if
// none was configured.
func (m TableMapping) effectiveTargetTable() string {
	if m.TargetTable != "" {
		return m.TargetTable
	}
	return m.SourceTable
}

// Config is the full, versioned mapping configuration.
type Config struct {
	Version               int                   `json:"version"`
	Mappings              []TableMapping        `json:"mappings"`
	UnmappedTableBehavior UnmappedTableBehavior `json:"unmapped_table_behavior"`
}

// effectiveUnmapped falls back to UnmappedStrict for an unknown/empty
// value.
func (c Config) effectiveUnmapped() UnmappedTableBehavior {
	switch c.UnmappedTableBehavior {
	case UnmappedStrict, UnmappedPassthrough:
		return c.UnmappedTableBehavior
	default:
		return UnmappedStrict
	}
}

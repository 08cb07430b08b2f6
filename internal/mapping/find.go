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

// SkipReason explains why Process declined to emit any output entry
// for a source entry.
type SkipReason string

// The reasons Process reports when it skips an entry.
const (
	SkipNoMapping      SkipReason = "no-mapping"
	SkipFilterRejected SkipReason = "filter-rejected"
	SkipNotDue         SkipReason = "not-due"
)

// Find selects the first mapping whose SourceTable matches table and
// whose Direction is compatible with phase. Disabled mappings are
// never selected. ok is false when no mapping matched.
func Find(cfg Config, table string, phase Direction) (TableMapping, bool) {
	for _, m := range cfg.Mappings {
		if !m.Enabled {
			continue
		}
		if m.SourceTable != table {
			continue
		}
		if !m.Direction.Applies(phase) {
			continue
		}
		return m, true
	}
	return TableMapping{}, false
}

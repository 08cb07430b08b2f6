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

import "github.com/cockroachdb/replistream/internal/apply"

// DefaultBatchSize is used when BatchConfig.BatchSize is zero.
const DefaultBatchSize = 1000

// BatchConfig controls pagination and FK retry behavior for a sync
// session.
type BatchConfig struct {
	BatchSize      int
	MaxRetryPasses int
}

// batchSize returns the effective batch size, substituting
// DefaultBatchSize when unset.
func (c BatchConfig) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// applyConfig projects BatchConfig onto the subset apply.Apply needs.
func (c BatchConfig) applyConfig(myOriginID string) apply.Config {
	return apply.Config{MyOriginID: myOriginID, MaxRetryPasses: c.MaxRetryPasses}
}

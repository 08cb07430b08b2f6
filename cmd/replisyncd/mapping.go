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

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/replistream/internal/coordinator"
	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/mapping"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// loadMappingConfig reads and parses a JSON mapping config from path.
// Unknown fields are ignored; unknown enum values fall back to their
// documented defaults inside the mapping package.
func loadMappingConfig(path string) (mapping.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return mapping.Config{}, errors.Wrap(err, "sync: reading mapping config")
	}
	var cfg mapping.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return mapping.Config{}, errors.Wrap(err, "sync: parsing mapping config")
	}
	return cfg, nil
}

// mappedFetchLocal wraps a FetchLocalFunc so that every fetched page
// runs through mapping.Process for the push phase before it is sent.
// Pages whose entries all map to nothing are skipped over, so a run of
// filtered-out entries never stalls the entries behind them.
func mappedFetchLocal(
	cfg mapping.Config, store mapping.StateStore, base coordinator.FetchLocalFunc,
) coordinator.FetchLocalFunc {
	return func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error) {
		from := fromVersion
		for {
			b, err := base(ctx, from, size)
			if err != nil || len(b.Changes) == 0 {
				return b, err
			}
			now := time.Now().UTC().Format(syncmodel.TimestampLayout)
			outs, err := mapping.Process(cfg, mapping.DirectionPush, b.Changes, store, now)
			if err != nil {
				return fetch.Batch{}, err
			}
			var mapped []syncmodel.Entry
			for _, o := range outs {
				mapped = append(mapped, o.Entries...)
			}
			if len(mapped) > 0 || !b.HasMore {
				b.FromVersion = fromVersion
				b.Changes = mapped
				return b, nil
			}
			from = b.ToVersion
		}
	}
}

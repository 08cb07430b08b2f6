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
	"time"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/fetch"
	log "github.com/sirupsen/logrus"
)

// FetchRemoteFunc pulls the next batch from the remote peer, starting
// strictly after fromVersion.
type FetchRemoteFunc func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error)

// StoreServerVersionFunc durably persists the replica's new
// last_server_version watermark.
type StoreServerVersionFunc func(ctx context.Context, version int64) error

// PullResult summarizes a completed (or partially completed, in the
// error case) pull.
type PullResult struct {
	Applied int
	From    int64
	To      int64
}

// Pull runs the pull half of a sync: it repeatedly fetches batches
// from the remote peer starting at lastServerVersion, applies each via
// apply.Apply, and persists the watermark after every successfully
// applied batch. Trigger suppression is held for the entire loop and
// is guaranteed to be released on every exit path.
//
// Cancellation is honored between batches, never mid-batch, so a
// batch's watermark advance stays atomic. Any apply.Apply error
// aborts the loop and is returned; the watermark has already been
// persisted up to the last fully-applied batch, so it never moves
// backward on failure.
func Pull(
	ctx context.Context,
	myOriginID string,
	lastServerVersion int64,
	cfg BatchConfig,
	suppressor TriggerSuppressor,
	fetchRemote FetchRemoteFunc,
	applyLocal apply.ApplyOneFunc,
	storeServerVersion StoreServerVersionFunc,
) (PullResult, error) {
	applyCfg := cfg.applyConfig(myOriginID)
	current := lastServerVersion
	totalApplied := 0

	err := withSuppression(ctx, suppressor, func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			batch, err := fetchRemote(ctx, current, cfg.batchSize())
			if err != nil {
				pullErrors.WithLabelValues(myOriginID).Inc()
				return err
			}
			if len(batch.Changes) == 0 {
				return nil
			}

			result, err := apply.Apply(ctx, batch, applyCfg, applyLocal)
			totalApplied += result.Applied
			if err != nil {
				pullErrors.WithLabelValues(myOriginID).Inc()
				return err
			}

			current = batch.ToVersion
			if err := storeServerVersion(ctx, current); err != nil {
				pullErrors.WithLabelValues(myOriginID).Inc()
				return err
			}
			pullBatchDuration.WithLabelValues(myOriginID).Observe(time.Since(start).Seconds())
			pullEntriesApplied.WithLabelValues(myOriginID).Add(float64(result.Applied))
			log.WithFields(log.Fields{
				"applied": result.Applied,
				"skipped": result.Skipped,
				"version": current,
			}).Debug("pull: applied batch")

			if !batch.HasMore {
				return nil
			}
		}
	})

	return PullResult{Applied: totalApplied, From: lastServerVersion, To: current}, err
}

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

	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	log "github.com/sirupsen/logrus"
)

// FetchLocalFunc pages the local change log for entries to push,
// mirroring fetch.FetchBatch's semantics.
type FetchLocalFunc func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error)

// SendRemoteFunc ships one non-empty batch of entries to the remote
// peer. Echo prevention for pushed data is the server's
// responsibility (it must origin-skip on its own next pull), not the
// pusher's.
type SendRemoteFunc func(ctx context.Context, entries []syncmodel.Entry) error

// StorePushVersionFunc durably persists the replica's new
// last_push_version watermark.
type StorePushVersionFunc func(ctx context.Context, version int64) error

// PushResult summarizes a completed push.
type PushResult struct {
	Pushed int
	From   int64
	To     int64
}

// Push pages the local log starting at lastPushVersion, sends each
// non-empty batch to the remote peer, and persists the new watermark
// after each successful send. It is symmetric with Pull but does not
// itself need trigger suppression: pushing never writes to the local
// store. Cancellation is honored between batches only.
func Push(
	ctx context.Context,
	myOriginID string,
	lastPushVersion int64,
	cfg BatchConfig,
	fetchLocal FetchLocalFunc,
	sendRemote SendRemoteFunc,
	storePushVersion StorePushVersionFunc,
) (PushResult, error) {
	current := lastPushVersion
	pushed := 0

	for {
		if err := ctx.Err(); err != nil {
			return PushResult{Pushed: pushed, From: lastPushVersion, To: current}, err
		}

		start := time.Now()
		batch, err := fetchLocal(ctx, current, cfg.batchSize())
		if err != nil {
			return PushResult{Pushed: pushed, From: lastPushVersion, To: current}, err
		}
		if len(batch.Changes) == 0 {
			break
		}

		if err := sendRemote(ctx, batch.Changes); err != nil {
			return PushResult{Pushed: pushed, From: lastPushVersion, To: current}, err
		}

		pushed += len(batch.Changes)
		current = batch.ToVersion
		if err := storePushVersion(ctx, current); err != nil {
			return PushResult{Pushed: pushed, From: lastPushVersion, To: current}, err
		}
		pushBatchDuration.WithLabelValues(myOriginID).Observe(time.Since(start).Seconds())
		pushEntriesSent.WithLabelValues(myOriginID).Add(float64(len(batch.Changes)))
		log.WithFields(log.Fields{"pushed": len(batch.Changes), "version": current}).Debug("push: sent batch")

		if !batch.HasMore {
			break
		}
	}

	return PushResult{Pushed: pushed, From: lastPushVersion, To: current}, nil
}

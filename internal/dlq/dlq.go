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

// Package dlq adds an optional dead-letter queue in front of the
// change applier: entries that fail to apply for a reason other than
// a deferrable foreign-key violation can be routed aside instead of
// aborting the whole batch. The default behavior (abort the batch on
// a non-FK error) is unchanged unless a Sink is configured.
package dlq

import (
	"context"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	log "github.com/sirupsen/logrus"
)

// Config enables and names the dead-letter destination.
type Config struct {
	Enabled   bool
	TableName string // host-defined meaning; the engine never inspects it
}

// Entry is one record routed to the DLQ: the source log entry plus
// the error that caused the applier to reject it.
type Entry struct {
	Source syncmodel.Entry
	Cause  error
}

// Sink persists a dead-lettered entry. Concrete destinations
// (a database table, a file, a message queue) are host concern.
type Sink interface {
	Put(ctx context.Context, e Entry) error
}

// Wrap decorates applyOne so that a non-FK-deferred error is routed to
// sink instead of aborting the calling apply.Apply batch. FK deferrals
// pass through unchanged, since those are expected to resolve on a
// later retry pass within the same batch rather than being
// dead-lettered. If cfg.Enabled is false, applyOne is returned
// unwrapped.
func Wrap(applyOne apply.ApplyOneFunc, sink Sink, cfg Config) apply.ApplyOneFunc {
	if !cfg.Enabled || sink == nil {
		return applyOne
	}
	return func(ctx context.Context, entry syncmodel.Entry) (apply.Outcome, error) {
		outcome, err := applyOne(ctx, entry)
		if err == nil || outcome == apply.FkDeferred {
			return outcome, err
		}
		log.WithFields(log.Fields{
			"table": entry.TableName, "version": entry.Version, "error": err,
		}).Warn("dlq: routing entry that failed to apply")
		if putErr := sink.Put(ctx, Entry{Source: entry, Cause: err}); putErr != nil {
			// Entry is now neither applied nor dead-lettered; surface the
			// original error so the batch aborts as it would without a
			// DLQ configured.
			return outcome, err
		}
		return apply.Ok, nil
	}
}

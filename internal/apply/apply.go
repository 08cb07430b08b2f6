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

// Package apply drives a batch of log entries through a host-supplied
// apply callback with foreign-key-aware retry passes and echo
// suppression.
package apply

import (
	"context"
	"strings"

	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/syncerr"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	log "github.com/sirupsen/logrus"
)

// Outcome is the result of applying a single entry.
type Outcome int

// The non-fatal outcomes an applier callback may report; a fatal
// failure is the callback's error return instead.
const (
	// Ok means the entry was applied successfully.
	Ok Outcome = iota
	// FkDeferred means the entry could not be applied because a
	// referenced row does not exist yet; it should be retried in a
	// later pass within the same batch.
	FkDeferred
)

// ApplyOneFunc applies a single entry to the local store. It must be
// idempotent: applying the same entry twice leaves the target row in
// the same state as applying it once. A non-nil, non-FK error aborts
// the whole batch.
type ApplyOneFunc func(ctx context.Context, entry syncmodel.Entry) (Outcome, error)

// DefaultMaxRetryPasses is used when Config.MaxRetryPasses is zero.
const DefaultMaxRetryPasses = 3

// Config controls a single call to Apply.
type Config struct {
	// MyOriginID is the applying replica's own origin identifier; any
	// entry with this origin is skipped, so a replica never re-applies
	// its own changes looping back through a peer.
	MyOriginID string
	// MaxRetryPasses bounds how many times FK-deferred entries are
	// retried within one batch. Zero means DefaultMaxRetryPasses.
	MaxRetryPasses int
}

// Result summarizes one call to Apply.
type Result struct {
	Applied   int
	Skipped   int
	ToVersion int64
}

// IsForeignKeyError is the shared heuristic for identifying a
// foreign-key violation from an arbitrary backend error message, when
// a host's ApplyOneFunc does not already classify the failure itself.
// It matches case-insensitively.
func IsForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range fkNeedles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

var fkNeedles = []string{
	"foreign key",
	"fk_",
	"foreign key constraint",
}

// Apply applies batch's entries in version order, deferring entries
// whose callback reports FkDeferred and retrying the deferred queue
// up to cfg.MaxRetryPasses times.
func Apply(ctx context.Context, batch fetch.Batch, cfg Config, applyOne ApplyOneFunc) (Result, error) {
	maxPasses := cfg.MaxRetryPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxRetryPasses
	}

	result := Result{ToVersion: batch.ToVersion}

	var pending []syncmodel.Entry
	for _, e := range batch.Changes {
		if e.Origin == cfg.MyOriginID {
			result.Skipped++
			continue
		}
		pending = append(pending, e)
	}

	var deferred []syncmodel.Entry
	for _, e := range pending {
		outcome, err := applyOne(ctx, e)
		switch {
		case err != nil:
			return result, err
		case outcome == FkDeferred:
			deferred = append(deferred, e)
		default:
			result.Applied++
		}
	}

	for pass := 0; pass < maxPasses && len(deferred) > 0; pass++ {
		var stillDeferred []syncmodel.Entry
		resolvedAny := false
		for _, e := range deferred {
			outcome, err := applyOne(ctx, e)
			switch {
			case err != nil:
				return result, err
			case outcome == FkDeferred:
				stillDeferred = append(stillDeferred, e)
			default:
				result.Applied++
				resolvedAny = true
			}
		}
		deferred = stillDeferred
		if !resolvedAny {
			// A pass that resolves nothing will never resolve anything
			// on a later pass either; stop early.
			break
		}
	}

	if len(deferred) > 0 {
		log.WithFields(log.Fields{
			"residual": len(deferred),
			"table":    deferred[0].TableName,
		}).Warn("entries remained FK-deferred after all retry passes")
		return result, &syncerr.DeferredChangeFailed{First: deferred[0], Residual: len(deferred)}
	}

	return result, nil
}

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

// Package chaostest wraps a fetch.ChangeLogStore to inject random
// errors, used by the coordinator's own test suite to assert that the
// pull loop leaves watermarks consistent under failure.
package chaostest

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// ErrChaos is the error injected by WithChaos.
var ErrChaos = errors.New("chaos")

// ChangeLogStore mirrors fetch.ChangeLogStore's method set; declared
// locally to avoid an import cycle back into the fetch package's
// tests.
type ChangeLogStore interface {
	Append(ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
		op syncmodel.Operation, origin, timestamp string) (int64, error)
	Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error)
}

// WithChaos returns a wrapper around delegate that injects ErrChaos on
// a fraction prob of calls. A non-positive prob returns delegate
// unwrapped.
func WithChaos(delegate ChangeLogStore, prob float32) ChangeLogStore {
	if prob <= 0 {
		return delegate
	}
	return &chaosStore{delegate: delegate, prob: prob}
}

// chaosStore does not embed a *rand.Rand: as soon as calls come from
// multiple goroutines there is no hope of repeatable behavior anyway.
type chaosStore struct {
	delegate ChangeLogStore
	prob     float32
}

func (c *chaosStore) Append(
	ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
	op syncmodel.Operation, origin, timestamp string,
) (int64, error) {
	if rand.Float32() < c.prob {
		return 0, doChaos("Append")
	}
	return c.delegate.Append(ctx, tableName, pkJSON, payloadJSON, op, origin, timestamp)
}

func (c *chaosStore) Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error) {
	if rand.Float32() < c.prob {
		return nil, doChaos("Fetch")
	}
	return c.delegate.Fetch(ctx, fromVersion, limit)
}

func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}

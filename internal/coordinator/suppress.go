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

// Package coordinator orchestrates a full sync round trip: pull then
// push, guaranteeing trigger suppression brackets the pull-apply
// window even on error paths.
package coordinator

import "context"

// TriggerSuppressor is the per-connection hook the host's trigger
// layer reads to decide whether a write should append a new change-log
// entry. It is a value explicitly threaded through the apply path
// rather than a global per-process flag.
type TriggerSuppressor interface {
	Suppress(ctx context.Context) error
	Unsuppress(ctx context.Context) error
}

// withSuppression enables suppression, runs fn, and guarantees
// suppression is disabled again before returning -- even if fn panics
// or returns an error.
func withSuppression(ctx context.Context, s TriggerSuppressor, fn func() error) error {
	if err := s.Suppress(ctx); err != nil {
		return err
	}
	defer func() {
		// An unsuppress failure must not mask fn's error.
		_ = s.Unsuppress(ctx)
	}()
	return fn()
}

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

// Package versioncheck runs a preflight compatibility check before a
// sync session starts: does the host's persisted state layout (the
// _sync_log/_sync_state/... tables) look like something this engine
// version can talk to. Run once, log every warning, and refuse to
// start if any came back.
package versioncheck

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Probe reports compatibility problems with the host's schema/state
// layout. A nil error with a non-empty warnings slice means "might
// still work, but needs operator attention"; a non-nil error means
// the probe itself failed to run.
type Probe func(ctx context.Context) (warnings []string, err error)

// Checker runs zero or more Probes and aggregates their warnings.
type Checker struct {
	Probes []Probe
}

// Check runs every configured probe and returns the union of their
// warnings. It stops at the first probe that fails outright.
func (c Checker) Check(ctx context.Context) ([]string, error) {
	var warnings []string
	for _, p := range c.Probes {
		w, err := p(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "versioncheck: probe failed")
		}
		warnings = append(warnings, w...)
	}
	return warnings, nil
}

// Preflight runs Check, logs every warning, and fails the sync
// session if any were returned: a partial schema mismatch is a
// configuration error to surface up front, not a partially-working
// session to limp along in.
func Preflight(ctx context.Context, c Checker) error {
	warnings, err := c.Check(ctx)
	if err != nil {
		return err
	}
	if len(warnings) == 0 {
		return nil
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return errors.New("versioncheck: manual schema change required")
}

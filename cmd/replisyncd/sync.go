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

	"github.com/cockroachdb/replistream/internal/coordinator"
	"github.com/cockroachdb/replistream/internal/host/pgstore"
	"github.com/cockroachdb/replistream/internal/tombstone"
	"github.com/cockroachdb/replistream/internal/versioncheck"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// sessionSuppressor backs coordinator.TriggerSuppressor with the
// persisted per-session flag in _sync_session, which a host's
// change-capture triggers read to skip log-appends while a pull is
// applying remote entries.
type sessionSuppressor struct {
	state     *pgstore.State
	sessionID string
}

func (s sessionSuppressor) Suppress(ctx context.Context) error {
	return s.state.SetSessionFlag(ctx, s.sessionID, true)
}

func (s sessionSuppressor) Unsuppress(ctx context.Context) error {
	return s.state.SetSessionFlag(ctx, s.sessionID, false)
}

// syncSession bundles the wired dependencies the sync command drives;
// newSyncSession in wire_gen.go assembles it.
type syncSession struct {
	Checker versioncheck.Checker
	Remote  *remoteChangeLog
	Session coordinator.Session
	State   *pgstore.State
}

func newSyncCommand() *cobra.Command {
	cfg := &SyncConfig{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "run one pull-then-push coordinator pass between two replicas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Preflight(); err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg)
		},
	}
	cfg.Bind(cmd.Flags())
	return cmd
}

// runSync drives a wired syncSession through one coordinator pass:
// bind flags, preflight, let Wire construct the dependency graph, call
// into the package that does the work. Transport between source and
// target is direct (both stores are dialed by this process); the CLI
// reaches both endpoints the way internal/host/loopback reaches two
// in-memory stores, just backed by real databases on each side.
func runSync(ctx context.Context, cfg *SyncConfig) error {
	s, cancel, err := newSyncSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer cancel()

	if err := versioncheck.Preflight(ctx, s.Checker); err != nil {
		return err
	}

	replicaState, err := s.State.LoadReplicaState(ctx, cfg.OriginID)
	if err != nil {
		return err
	}

	// The next version this replica needs is LastServerVersion+1; if
	// the remote has purged past that, incremental pull cannot cross
	// the gap and the host must snapshot-replicate first.
	oldest, err := s.Remote.OldestVersion(ctx)
	if err != nil {
		return err
	}
	if tombstone.RequiresFullResync(replicaState.LastServerVersion+1, oldest) {
		log.WithFields(log.Fields{
			"client_version": replicaState.LastServerVersion, "oldest_version": oldest,
		}).Warn("sync: full resync required; configure a coordinator.Backfiller to proceed")
		return tombstone.FullResyncError(replicaState.LastServerVersion, oldest)
	}

	result, err := coordinator.Sync(ctx, s.Session, replicaState.LastServerVersion, replicaState.LastPushVersion)
	if fr, ok := coordinator.IsFullResyncRequired(err); ok {
		log.WithFields(log.Fields{
			"client_version": fr.ClientVersion, "oldest_version": fr.OldestVersion,
		}).Warn("sync: full resync required; configure a coordinator.Backfiller to proceed")
		return fr
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"pulled": result.Pull.Applied, "pushed": result.Push.Pushed,
		"server_version": result.Pull.To, "push_version": result.Push.To,
	}).Info("sync: pass complete")
	return nil
}

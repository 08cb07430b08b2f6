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
	"time"

	"github.com/cockroachdb/replistream/internal/host/pgstore"
	"github.com/cockroachdb/replistream/internal/tombstone"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// purgeConfig is the pflag-bound configuration for the "purge"
// subcommand.
type purgeConfig struct {
	TargetDSN     string
	Schema        string
	MaxInactivity time.Duration
}

// newPurgeCommand removes stale tracked clients, computes the
// safe-purge version from the survivors, and deletes the tombstones
// every remaining client has already seen.
func newPurgeCommand() *cobra.Command {
	cfg := &purgeConfig{}
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "garbage-collect tombstones that every tracked client has seen",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TargetDSN == "" {
				return errors.New("purge: targetDSN is required")
			}
			return runPurge(cmd.Context(), cfg)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.TargetDSN, "targetDSN", "", "connection string for this replica's store")
	flags.StringVar(&cfg.Schema, "schema", "replistream", "schema name the _sync_* tables live under")
	flags.DurationVar(&cfg.MaxInactivity, "maxInactivity", tombstone.InactivityLimit,
		"window after which a client that has not synced is dropped from purge tracking")
	return cmd
}

func runPurge(ctx context.Context, cfg *purgeConfig) error {
	pool, err := pgstore.Open(ctx, cfg.TargetDSN)
	if err != nil {
		return errors.Wrap(err, "purge: connecting to target")
	}
	defer pool.Close()

	changeLog := pgstore.NewChangeLog(pool, cfg.Schema)
	state := pgstore.NewState(pool, cfg.Schema)

	clients, err := state.ListClients(ctx)
	if err != nil {
		return err
	}

	count, safeVersion, err := tombstone.Purge(clients, time.Now().UTC(), cfg.MaxInactivity,
		func(originID string) error { return state.DeleteClient(ctx, originID) },
		func(v int64) (int, error) { return changeLog.Purge(ctx, v) },
	)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"purged": count, "safe_version": safeVersion, "clients": len(clients),
	}).Info("purge: complete")
	return nil
}

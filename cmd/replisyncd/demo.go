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
	"fmt"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/coordinator"
	"github.com/cockroachdb/replistream/internal/host/loopback"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// passthroughSuppressor is the demo's no-op TriggerSuppressor: the
// loopback store has no trigger layer of its own to suppress.
type passthroughSuppressor struct{}

func (passthroughSuppressor) Suppress(context.Context) error   { return nil }
func (passthroughSuppressor) Unsuppress(context.Context) error { return nil }

// newDemoCommand runs the echo-prevention scenario end to end against
// an internal/host/loopback store, with no database required: replica
// A emits three entries, a server reflects them back unchanged on
// pull, and the applier must skip all three rather than re-apply
// them.
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run the echo-prevention scenario in-memory and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	const myOrigin = "A"
	server := &loopback.Store{}

	for i := 1; i <= 3; i++ {
		pk, _ := json.Marshal(map[string]int{"id": i})
		payload, _ := json.Marshal(map[string]any{"id": i, "note": "seed"})
		if _, err := server.Append(ctx, "widgets", pk, payload, syncmodel.OpInsert, myOrigin,
			fmt.Sprintf("2025-01-01T00:00:0%d.000Z", i)); err != nil {
			return err
		}
	}

	applied := map[string]json.RawMessage{}
	applyOne := func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		applied[string(e.PKValue)] = e.Payload
		return apply.Ok, nil
	}

	fetchRemote, _ := loopback.Link(server)
	result, err := coordinator.Pull(ctx, myOrigin, 0, coordinator.BatchConfig{},
		passthroughSuppressor{}, fetchRemote, applyOne, func(context.Context, int64) error { return nil })
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"applied": result.Applied, "to_version": result.To, "rows_written": len(applied),
	}).Info("demo: echo-prevention pull complete (expect applied=0, rows_written=0)")
	return nil
}

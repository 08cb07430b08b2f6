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

// Command replisyncd is the reference entrypoint for the sync engine:
// a Cobra binary exposing "sync", "verify", "demo", and "purge"
// subcommands.
// It wires internal/host/pgstore or internal/host/sqlstore against
// the engine packages; the engine itself has no knowledge of this
// binary.
package main

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// SyncConfig is the pflag-bound configuration for the "sync"
// subcommand: a Bind method registering every flag and a Preflight
// method validating the result, called once after flags are parsed.
type SyncConfig struct {
	SourceDSN         string
	TargetDSN         string
	Dialect           string // "postgres" or "mysql", selects sqlstore.Dialect
	Schema            string
	OriginID          string
	BatchSize         uint
	MaxRetries        uint
	MappingConfigPath string
	DLQTable          string
}

// Bind registers flags.
func (c *SyncConfig) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.SourceDSN, "sourceDSN", "", "connection string for the remote peer's store")
	flags.StringVar(&c.TargetDSN, "targetDSN", "", "connection string for this replica's local store")
	flags.StringVar(&c.Dialect, "dialect", "postgres", "target dialect: postgres or mysql")
	flags.StringVar(&c.Schema, "schema", "replistream", "schema name the _sync_* tables live under")
	flags.StringVar(&c.OriginID, "originID", "", "this replica's origin identifier; generated if unset")
	flags.UintVar(&c.BatchSize, "batchSize", 1000, "entries fetched per page")
	flags.UintVar(&c.MaxRetries, "maxRetryPasses", 3, "FK-deferral retry passes per batch")
	flags.StringVar(&c.MappingConfigPath, "mappingConfig", "", "path to a JSON mapping config applied to pushed entries")
	flags.StringVar(&c.DLQTable, "dlqTable", "", "dead-letter table for entries that fail to apply; empty disables the DLQ")
}

// Preflight validates the parsed configuration and fills in defaults
// that depend on other fields (e.g. a freshly minted origin ID).
func (c *SyncConfig) Preflight() error {
	if c.SourceDSN == "" {
		return errors.New("sourceDSN unset")
	}
	if c.TargetDSN == "" {
		return errors.New("targetDSN unset")
	}
	switch c.Dialect {
	case "postgres", "mysql":
	default:
		return errors.Errorf("unknown dialect %q: must be postgres or mysql", c.Dialect)
	}
	if c.OriginID == "" {
		c.OriginID = uuid.NewString()
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	return nil
}

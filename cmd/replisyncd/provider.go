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
	"database/sql"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/conflict"
	"github.com/cockroachdb/replistream/internal/coordinator"
	"github.com/cockroachdb/replistream/internal/dlq"
	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/host/pgstore"
	"github.com/cockroachdb/replistream/internal/host/sqlstore"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/versioncheck"
	"github.com/google/wire"
	"github.com/pkg/errors"
)

// Set is used by Wire to assemble the sync command's dependency
// graph; wire_gen.go holds the injector.
var Set = wire.NewSet(
	pgstore.Set,
	providePGConfig,
	provideApplyOne,
	provideFetchLocal,
	provideRemoteStore,
	provideSession,
	provideVersionChecker,
	wire.Struct(new(syncSession), "*"),
)

// providePGConfig is called by Wire to project the CLI flags onto
// pgstore's pool configuration.
func providePGConfig(cfg *SyncConfig) *pgstore.Config {
	return &pgstore.Config{ConnString: cfg.TargetDSN, SchemaName: cfg.Schema}
}

// provideVersionChecker is called by Wire to build the preflight
// checker run before a session starts.
func provideVersionChecker(pool *pgstore.Pool) versioncheck.Checker {
	return versioncheck.Checker{Probes: []versioncheck.Probe{
		func(ctx context.Context) ([]string, error) {
			var one int
			if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}}
}

// provideRemoteStore is called by Wire to dial the peer replica's
// store. The connection is closed by the cancel function.
func provideRemoteStore(cfg *SyncConfig) (*remoteChangeLog, func(), error) {
	db, err := sql.Open(driverFor(cfg.Dialect), cfg.SourceDSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sync: connecting to source")
	}
	remote := &remoteChangeLog{
		store: &sqlstore.Store{DB: db, Dialect: dialectFor(cfg.Dialect)},
		table: "_sync_log",
	}
	return remote, func() { _ = db.Close() }, nil
}

// provideApplyOne is called by Wire to build the row applier: the
// pgstore UPSERT/DELETE writer, guarded by conflict resolution and,
// when --dlqTable is set, the dead-letter wrapper.
func provideApplyOne(
	ctx context.Context, cfg *SyncConfig, pool *pgstore.Pool, changeLog *pgstore.ChangeLog,
) (apply.ApplyOneFunc, error) {
	applyOne := pgstore.NewApplyOne(pool,
		func(table string) string { return cfg.Schema + "." + table },
		func(table string) []string { return []string{"id"} },
	)
	applyOne = conflict.Guard(conflict.Default(), changeLog.Latest, applyOne)

	if cfg.DLQTable != "" {
		sink, err := newDLQSink(ctx, pool, cfg.Schema+"."+cfg.DLQTable)
		if err != nil {
			return nil, err
		}
		applyOne = dlq.Wrap(applyOne, sink, dlq.Config{Enabled: true, TableName: cfg.DLQTable})
	}
	return applyOne, nil
}

// provideFetchLocal is called by Wire to build the push side's local
// pager, run through the mapping engine when --mappingConfig is set.
func provideFetchLocal(
	cfg *SyncConfig, changeLog *pgstore.ChangeLog, state *pgstore.State,
) (coordinator.FetchLocalFunc, error) {
	fetchLocal := coordinator.FetchLocalFunc(
		func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error) {
			return fetch.FetchBatch(ctx, changeLog, fromVersion, size, false)
		})
	if cfg.MappingConfigPath == "" {
		return fetchLocal, nil
	}
	mappingCfg, err := loadMappingConfig(cfg.MappingConfigPath)
	if err != nil {
		return nil, err
	}
	return mappedFetchLocal(mappingCfg, state, fetchLocal), nil
}

// provideSession is called by Wire to assemble the coordinator
// session from its wired parts.
func provideSession(
	cfg *SyncConfig,
	state *pgstore.State,
	remote *remoteChangeLog,
	applyOne apply.ApplyOneFunc,
	fetchLocal coordinator.FetchLocalFunc,
) coordinator.Session {
	return coordinator.Session{
		MyOriginID: cfg.OriginID,
		Cfg:        coordinator.BatchConfig{BatchSize: int(cfg.BatchSize), MaxRetryPasses: int(cfg.MaxRetries)},
		Suppressor: sessionSuppressor{state: state, sessionID: cfg.OriginID},
		FetchRemote: func(ctx context.Context, fromVersion int64, size int) (fetch.Batch, error) {
			return fetch.FetchBatch(ctx, remote, fromVersion, size, false)
		},
		ApplyLocal: applyOne,
		StoreServerVersion: func(ctx context.Context, v int64) error {
			return state.StoreServerVersion(ctx, cfg.OriginID, v)
		},
		FetchLocal: fetchLocal,
		SendRemote: func(ctx context.Context, entries []syncmodel.Entry) error {
			for _, e := range entries {
				if _, err := remote.Append(ctx, e.TableName, e.PKValue, e.Payload, e.Operation, e.Origin, e.Timestamp); err != nil {
					return err
				}
			}
			return nil
		},
		StorePushVersion: func(ctx context.Context, v int64) error {
			return state.StorePushVersion(ctx, cfg.OriginID, v)
		},
	}
}

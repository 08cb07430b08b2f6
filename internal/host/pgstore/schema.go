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

package pgstore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// schemaStatements creates the seven persisted-state tables
// ("_sync_state", "_sync_session", "_sync_log", "_sync_clients",
// "_sync_subscriptions", "_sync_mapping_state", "_sync_record_hashes"),
// scoped under schemaName. Idempotent, one statement per table, no
// migration framework.
func schemaStatements(schemaName string) []string {
	t := func(name string) string { return fmt.Sprintf("%s.%s", schemaName, name) }
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			version BIGINT NOT NULL,
			table_name STRING NOT NULL,
			pk_value JSONB NOT NULL,
			operation STRING NOT NULL,
			payload JSONB,
			origin STRING NOT NULL,
			timestamp STRING NOT NULL,
			PRIMARY KEY (origin, version)
		)`, t("_sync_log")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			origin_id STRING PRIMARY KEY,
			last_server_version BIGINT NOT NULL DEFAULT 0,
			last_push_version BIGINT NOT NULL DEFAULT 0
		)`, t("_sync_state")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id STRING PRIMARY KEY,
			sync_active BOOL NOT NULL DEFAULT false
		)`, t("_sync_session")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			origin_id STRING PRIMARY KEY,
			last_sync_version BIGINT NOT NULL,
			last_sync_timestamp STRING NOT NULL,
			created_at STRING NOT NULL
		)`, t("_sync_clients")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			subscription_id STRING PRIMARY KEY,
			origin_id STRING NOT NULL,
			type STRING NOT NULL,
			table_name STRING NOT NULL,
			filter JSONB,
			created_at STRING NOT NULL,
			expires_at STRING
		)`, t("_sync_subscriptions")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			mapping_id STRING PRIMARY KEY,
			last_synced_version BIGINT NOT NULL DEFAULT 0,
			last_sync_timestamp STRING,
			records_synced BIGINT NOT NULL DEFAULT 0
		)`, t("_sync_mapping_state")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			mapping_id STRING NOT NULL,
			source_pk JSONB NOT NULL,
			payload_hash STRING NOT NULL,
			synced_at STRING NOT NULL,
			PRIMARY KEY (mapping_id, source_pk)
		)`, t("_sync_record_hashes")),
	}
}

// EnsureSchema creates every table this package needs if it is not
// already present.
func EnsureSchema(ctx context.Context, pool *Pool, schemaName string) error {
	for _, stmt := range schemaStatements(schemaName) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "pgstore: schema setup failed on %q", schemaName)
		}
	}
	return nil
}

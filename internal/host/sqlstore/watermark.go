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

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// One row per origin_id, read-then-upsert, no migration framework.
const watermarkTableSchema = `
CREATE TABLE IF NOT EXISTS %s (
	origin_id VARCHAR(255) PRIMARY KEY,
	last_server_version BIGINT NOT NULL DEFAULT 0,
	last_push_version BIGINT NOT NULL DEFAULT 0
)`

const watermarkTableName = "_sync_state"

// EnsureWatermarkTable creates the watermark table if it does not
// already exist.
func EnsureWatermarkTable(ctx context.Context, s *Store) error {
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(watermarkTableSchema, watermarkTableName))
	return err
}

// LoadWatermark returns the persisted (last_server_version,
// last_push_version) pair for originID, or (0, 0) if no row exists
// yet.
func LoadWatermark(ctx context.Context, s *Store, originID string) (lastServerVersion, lastPushVersion int64, err error) {
	query := fmt.Sprintf(`SELECT last_server_version, last_push_version FROM %s WHERE origin_id = %s`,
		watermarkTableName, s.Dialect.Placeholder(1))
	row := s.DB.QueryRowContext(ctx, query, originID)
	switch err := row.Scan(&lastServerVersion, &lastPushVersion); err {
	case sql.ErrNoRows:
		return 0, 0, nil
	case nil:
		return lastServerVersion, lastPushVersion, nil
	default:
		return 0, 0, err
	}
}

// StoreServerVersion persists a new last_server_version watermark for
// originID, matching coordinator.StoreServerVersionFunc.
func StoreServerVersion(ctx context.Context, s *Store, originID string, version int64) error {
	return upsertWatermarkColumn(ctx, s, originID, "last_server_version", version)
}

// StorePushVersion persists a new last_push_version watermark for
// originID, matching coordinator.StorePushVersionFunc.
func StorePushVersion(ctx context.Context, s *Store, originID string, version int64) error {
	return upsertWatermarkColumn(ctx, s, originID, "last_push_version", version)
}

func upsertWatermarkColumn(ctx context.Context, s *Store, originID, column string, version int64) error {
	// database/sql has no portable UPSERT across Postgres and MySQL
	// (ON CONFLICT vs ON DUPLICATE KEY UPDATE), so this writes through
	// an explicit read-then-write pair.
	existingServer, existingPush, err := LoadWatermark(ctx, s, originID)
	if err != nil {
		return err
	}
	if column == "last_server_version" {
		existingServer = version
	} else {
		existingPush = version
	}

	if s.Dialect == DialectMySQL {
		_, err = s.DB.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (origin_id, last_server_version, last_push_version) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE last_server_version = VALUES(last_server_version), last_push_version = VALUES(last_push_version)`,
			watermarkTableName), originID, existingServer, existingPush)
		return err
	}

	_, err = s.DB.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (origin_id, last_server_version, last_push_version) VALUES ($1, $2, $3)
		 ON CONFLICT (origin_id) DO UPDATE SET last_server_version = excluded.last_server_version, last_push_version = excluded.last_push_version`,
		watermarkTableName), originID, existingServer, existingPush)
	return err
}

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

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ChangeLog backs fetch.ChangeLogStore with the "_sync_log" table.
// The full table name is resolved once, at construction, rather than
// recomputed per call.
type ChangeLog struct {
	pool  *Pool
	table string // schema-qualified "_sync_log"
}

// NewChangeLog returns a ChangeLog backed by pool, scoped to
// schemaName's "_sync_log" table.
func NewChangeLog(pool *Pool, schemaName string) *ChangeLog {
	return &ChangeLog{pool: pool, table: fmt.Sprintf("%s._sync_log", schemaName)}
}

// Append records a local write, assigning it the next version. The
// version counter is global to this replica's log, not scoped per
// origin, since an applied remote entry shares the same log as
// locally-originated ones. The RETURNING clause hands back the
// assigned version in the same round trip.
func (c *ChangeLog) Append(
	ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
	op syncmodel.Operation, origin, timestamp string,
) (int64, error) {
	var version int64
	query := fmt.Sprintf(`
		INSERT INTO %s (version, table_name, pk_value, operation, payload, origin, timestamp)
		VALUES (
			COALESCE((SELECT max(version) FROM %s), 0) + 1,
			$1, $2, $3, $4, $5, $6
		)
		RETURNING version`, c.table, c.table)
	err := c.pool.QueryRow(ctx, query, tableName, pkJSON, string(op), payloadJSON, origin, timestamp).Scan(&version)
	if err != nil {
		return 0, errors.Wrap(err, "pgstore: append failed")
	}
	return version, nil
}

// Fetch returns up to limit entries with Version > fromVersion, in
// ascending version order, matching fetch.ChangeLogStore's contract.
func (c *ChangeLog) Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error) {
	query := fmt.Sprintf(`
		SELECT version, table_name, pk_value, operation, payload, origin, timestamp
		FROM %s WHERE version > $1 ORDER BY version ASC LIMIT $2`, c.table)
	rows, err := c.pool.Query(ctx, query, fromVersion, limit)
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: fetch failed")
	}
	defer rows.Close()

	var out []syncmodel.Entry
	for rows.Next() {
		var e syncmodel.Entry
		var op string
		if err := rows.Scan(&e.Version, &e.TableName, &e.PKValue, &op, &e.Payload, &e.Origin, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "pgstore: scanning entry")
		}
		e.Operation = syncmodel.Operation(op)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pgstore: iterating entries")
	}
	return out, nil
}

// Latest returns the entry with the greatest (timestamp, version) for
// (tableName, pkValue), the record's locally-observed state. ok is
// false when the log holds no entry for the record. This is the
// lookup conflict.Guard consults before applying a remote entry.
func (c *ChangeLog) Latest(ctx context.Context, tableName string, pkValue []byte) (syncmodel.Entry, bool, error) {
	query := fmt.Sprintf(`
		SELECT version, table_name, pk_value, operation, payload, origin, timestamp
		FROM %s WHERE table_name = $1 AND pk_value = $2
		ORDER BY timestamp DESC, version DESC LIMIT 1`, c.table)
	var e syncmodel.Entry
	var op string
	err := c.pool.QueryRow(ctx, query, tableName, pkValue).
		Scan(&e.Version, &e.TableName, &e.PKValue, &op, &e.Payload, &e.Origin, &e.Timestamp)
	switch {
	case err == pgx.ErrNoRows:
		return syncmodel.Entry{}, false, nil
	case err != nil:
		return syncmodel.Entry{}, false, errors.Wrap(err, "pgstore: looking up latest entry")
	default:
		e.Operation = syncmodel.Operation(op)
		return e, true, nil
	}
}

// Purge deletes tombstones (delete entries) with version <=
// safeVersion, implementing the PurgeFunc shape tombstone.Purge
// expects.
func (c *ChangeLog) Purge(ctx context.Context, safeVersion int64) (int, error) {
	tag, err := c.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE version <= $1 AND operation = $2`, c.table),
		safeVersion, string(syncmodel.OpDelete))
	if err != nil {
		return 0, errors.Wrap(err, "pgstore: purge failed")
	}
	return int(tag.RowsAffected()), nil
}

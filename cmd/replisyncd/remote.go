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
	"fmt"

	"github.com/cockroachdb/replistream/internal/fetch"
	"github.com/cockroachdb/replistream/internal/host/sqlstore"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// remoteChangeLog is a fetch.ChangeLogStore implementation over a
// sqlstore.Store's "_sync_log" table, used for the peer replica side
// of "sync" (the engine is symmetric about which side is "remote", so
// this is the same table shape pgstore.ChangeLog writes, just reached
// through database/sql instead of pgx).
type remoteChangeLog struct {
	store *sqlstore.Store
	table string
}

var _ fetch.ChangeLogStore = (*remoteChangeLog)(nil)

func (r *remoteChangeLog) Append(
	ctx context.Context, tableName string, pkJSON, payloadJSON []byte,
	op syncmodel.Operation, origin, timestamp string,
) (int64, error) {
	p := r.store.Dialect.Placeholder
	query := fmt.Sprintf(`
		INSERT INTO %s (version, table_name, pk_value, operation, payload, origin, timestamp)
		VALUES ((SELECT COALESCE(MAX(version), 0) FROM %s) + 1, %s, %s, %s, %s, %s, %s)`,
		r.table, r.table, p(1), p(2), p(3), p(4), p(5), p(6))
	if _, err := r.store.DB.ExecContext(ctx, query, tableName, pkJSON, string(op), payloadJSON, origin, timestamp); err != nil {
		return 0, errors.Wrap(err, "remote changelog: append failed")
	}
	var version int64
	if err := r.store.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(version) FROM %s`, r.table)).Scan(&version); err != nil {
		return 0, errors.Wrap(err, "remote changelog: reading assigned version")
	}
	return version, nil
}

func (r *remoteChangeLog) Fetch(ctx context.Context, fromVersion int64, limit int) ([]syncmodel.Entry, error) {
	p := r.store.Dialect.Placeholder
	query := fmt.Sprintf(`
		SELECT version, table_name, pk_value, operation, payload, origin, timestamp
		FROM %s WHERE version > %s ORDER BY version ASC LIMIT %s`, r.table, p(1), p(2))
	rows, err := r.store.DB.QueryContext(ctx, query, fromVersion, limit)
	if err != nil {
		return nil, errors.Wrap(err, "remote changelog: fetch failed")
	}
	defer rows.Close()

	var out []syncmodel.Entry
	for rows.Next() {
		var e syncmodel.Entry
		var op string
		if err := rows.Scan(&e.Version, &e.TableName, &e.PKValue, &op, &e.Payload, &e.Origin, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "remote changelog: scanning entry")
		}
		e.Operation = syncmodel.Operation(op)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OldestVersion returns the smallest surviving version in the remote
// log, or 0 when the log is empty. The sync command compares this
// against the local watermark to detect a purge-created gap that
// incremental pull cannot cross.
func (r *remoteChangeLog) OldestVersion(ctx context.Context) (int64, error) {
	var oldest int64
	query := fmt.Sprintf(`SELECT COALESCE(MIN(version), 0) FROM %s`, r.table)
	if err := r.store.DB.QueryRowContext(ctx, query).Scan(&oldest); err != nil {
		return 0, errors.Wrap(err, "remote changelog: reading oldest version")
	}
	return oldest, nil
}

func driverFor(dialect string) string {
	if dialect == "mysql" {
		return "mysql"
	}
	return "postgres"
}

func dialectFor(dialect string) sqlstore.Dialect {
	if dialect == "mysql" {
		return sqlstore.DialectMySQL
	}
	return sqlstore.DialectPostgres
}

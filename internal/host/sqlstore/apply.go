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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// TargetTableFunc and PKColumnsFunc mirror pgstore's extension points:
// the engine only ever sees apply.ApplyOneFunc, so resolving a
// change-log table name to a physical table/PK layout is host detail.
type TargetTableFunc func(tableName string) string
type PKColumnsFunc func(tableName string) []string

// NewApplyOne builds an apply.ApplyOneFunc against s: parse the
// payload JSON, merge with the PK columns, build an INSERT/DELETE by
// hand under either dialect. Unlike pgstore, there is no UPSERT
// keyword available in vanilla MySQL, so writes go through a
// delete-then-insert pair inside a transaction -- still idempotent,
// just not a single statement.
func NewApplyOne(s *Store, targetTable TargetTableFunc, pkColumns PKColumnsFunc) apply.ApplyOneFunc {
	return func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		table := targetTable(e.TableName)
		pkCols := pkColumns(e.TableName)

		var pk map[string]any
		if err := json.Unmarshal(e.PKValue, &pk); err != nil {
			return apply.Ok, errors.Wrap(err, "sqlstore: decoding pk_value")
		}

		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return apply.Ok, errors.Wrap(err, "sqlstore: begin")
		}
		defer tx.Rollback()

		if err := deleteRow(ctx, tx, s.Dialect, table, pkCols, pk); err != nil {
			if apply.IsForeignKeyError(err) {
				return apply.FkDeferred, nil
			}
			return apply.Ok, err
		}

		if !e.IsDelete() {
			var payload map[string]any
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				return apply.Ok, errors.Wrap(err, "sqlstore: decoding payload")
			}
			if err := insertRow(ctx, tx, s.Dialect, table, pkCols, pk, payload); err != nil {
				if apply.IsForeignKeyError(err) {
					return apply.FkDeferred, nil
				}
				return apply.Ok, err
			}
		}

		if err := tx.Commit(); err != nil {
			return apply.Ok, errors.Wrap(err, "sqlstore: commit")
		}
		return apply.Ok, nil
	}
}

// insertRow merges the payload columns with the PK columns, builds a
// dynamic column/value list, and issues one INSERT. Called after
// deleteRow within the same transaction, so this never conflicts with
// a pre-existing row.
func insertRow(ctx context.Context, tx *sql.Tx, d Dialect, table string, pkCols []string, pk, payload map[string]any) error {
	columns := make(map[string]any, len(payload)+len(pkCols))
	for k, v := range payload {
		columns[k] = v
	}
	for _, col := range pkCols {
		if v, ok := pk[col]; ok {
			columns[col] = v
		}
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var stmt strings.Builder
	var values []any
	fmt.Fprintf(&stmt, "INSERT INTO %s (", table)
	for i, name := range names {
		if i > 0 {
			stmt.WriteString(", ")
		}
		stmt.WriteString(name)
		values = append(values, columns[name])
	}
	stmt.WriteString(") VALUES (")
	for i := range values {
		if i > 0 {
			stmt.WriteString(", ")
		}
		stmt.WriteString(d.Placeholder(i + 1))
	}
	stmt.WriteString(")")

	_, err := tx.ExecContext(ctx, stmt.String(), values...)
	if err != nil {
		return errors.Wrapf(err, "sqlstore: insert into %s", table)
	}
	return nil
}

// deleteRow builds a WHERE clause from every PK column, ANDed
// together.
func deleteRow(ctx context.Context, tx *sql.Tx, d Dialect, table string, pkCols []string, pk map[string]any) error {
	var stmt strings.Builder
	var values []any
	fmt.Fprintf(&stmt, "DELETE FROM %s WHERE ", table)
	for i, col := range pkCols {
		if i > 0 {
			stmt.WriteString(" AND ")
		}
		fmt.Fprintf(&stmt, "%s = %s", col, d.Placeholder(i+1))
		values = append(values, pk[col])
	}

	_, err := tx.ExecContext(ctx, stmt.String(), values...)
	if err != nil {
		return errors.Wrapf(err, "sqlstore: delete from %s", table)
	}
	return nil
}

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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/replistream/internal/apply"
	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/pkg/errors"
)

// TargetTableFunc resolves a change-log table name to the physical,
// schema-qualified table an entry should be written to. A host with no
// mapping engine in front of apply can pass a func that just
// qualifies the name with a fixed schema.
type TargetTableFunc func(tableName string) string

// PKColumnsFunc returns the primary key column names, in order, for
// tableName. The applier needs these for the upsert's conflict target,
// the DELETE WHERE clause, and to know which keys of pk_value map to
// which column.
type PKColumnsFunc func(tableName string) []string

// NewApplyOne builds an apply.ApplyOneFunc that upserts or deletes a
// row per entry, building a dynamic column list for any table
// TargetTableFunc resolves to. Foreign-key violations are classified
// with apply.IsForeignKeyError and reported as FkDeferred rather than
// a fatal error, so apply.Apply's retry passes can resolve them.
func NewApplyOne(pool *Pool, targetTable TargetTableFunc, pkColumns PKColumnsFunc) apply.ApplyOneFunc {
	return func(ctx context.Context, e syncmodel.Entry) (apply.Outcome, error) {
		table := targetTable(e.TableName)
		pkCols := pkColumns(e.TableName)

		var pk map[string]any
		if err := json.Unmarshal(e.PKValue, &pk); err != nil {
			return apply.Ok, errors.Wrap(err, "pgstore: decoding pk_value")
		}

		if e.IsDelete() {
			return deleteRow(ctx, pool, table, pkCols, pk)
		}
		var payload map[string]any
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return apply.Ok, errors.Wrap(err, "pgstore: decoding payload")
		}
		return upsertRow(ctx, pool, table, pkCols, pk, payload)
	}
}

func upsertRow(
	ctx context.Context, pool *Pool, table string, pkCols []string, pk, payload map[string]any,
) (apply.Outcome, error) {
	columns := make(map[string]any, len(payload)+len(pk))
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
	sort.Strings(names) // deterministic statement text, easier to log/debug

	var stmt strings.Builder
	var values []any
	fmt.Fprintf(&stmt, "UPSERT INTO %s (", table)
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
		fmt.Fprintf(&stmt, "$%d", i+1)
	}
	stmt.WriteString(")")

	if _, err := pool.Exec(ctx, stmt.String(), values...); err != nil {
		if apply.IsForeignKeyError(err) {
			return apply.FkDeferred, nil
		}
		return apply.Ok, errors.Wrapf(err, "pgstore: upsert into %s", table)
	}
	return apply.Ok, nil
}

func deleteRow(ctx context.Context, pool *Pool, table string, pkCols []string, pk map[string]any) (apply.Outcome, error) {
	var stmt strings.Builder
	var values []any
	fmt.Fprintf(&stmt, "DELETE FROM %s WHERE ", table)
	for i, col := range pkCols {
		if i > 0 {
			stmt.WriteString(" AND ")
		}
		fmt.Fprintf(&stmt, "%s = $%d", col, i+1)
		values = append(values, pk[col])
	}

	if _, err := pool.Exec(ctx, stmt.String(), values...); err != nil {
		if apply.IsForeignKeyError(err) {
			return apply.FkDeferred, nil
		}
		return apply.Ok, errors.Wrapf(err, "pgstore: delete from %s", table)
	}
	return apply.Ok, nil
}

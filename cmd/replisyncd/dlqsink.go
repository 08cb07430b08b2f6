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

	"github.com/cockroachdb/replistream/internal/dlq"
	"github.com/cockroachdb/replistream/internal/host/pgstore"
	"github.com/pkg/errors"
)

// pgDLQSink persists dead-lettered entries to a table on the target
// replica, alongside the rows they failed to become.
type pgDLQSink struct {
	pool  *pgstore.Pool
	table string // schema-qualified
}

// newDLQSink creates the dead-letter table if needed and returns a
// sink writing to it.
func newDLQSink(ctx context.Context, pool *pgstore.Pool, table string) (dlq.Sink, error) {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		table_name STRING NOT NULL,
		version BIGINT NOT NULL,
		origin STRING NOT NULL,
		pk_value JSONB NOT NULL,
		payload JSONB,
		cause STRING NOT NULL,
		PRIMARY KEY (origin, version)
	)`, table)
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, errors.Wrapf(err, "sync: creating dead-letter table %s", table)
	}
	return &pgDLQSink{pool: pool, table: table}, nil
}

// Put implements dlq.Sink.
func (s *pgDLQSink) Put(ctx context.Context, e dlq.Entry) error {
	query := fmt.Sprintf(`
		UPSERT INTO %s (table_name, version, origin, pk_value, payload, cause)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	_, err := s.pool.Exec(ctx, query,
		e.Source.TableName, e.Source.Version, e.Source.Origin,
		e.Source.PKValue, e.Source.Payload, e.Cause.Error())
	return errors.Wrap(err, "sync: writing dead-letter entry")
}

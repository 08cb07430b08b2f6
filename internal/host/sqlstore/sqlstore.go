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

// Package sqlstore is a reference host adapter for a target replica
// reached through database/sql, supporting any driver that registers
// itself the usual way -- this package itself only imports
// github.com/lib/pq and github.com/go-sql-driver/mysql for their
// side-effecting driver registration.
//
// Where pgstore assumes a single CockroachDB/PostgreSQL dialect and
// can lean on RETURNING and UPSERT, sqlstore is written against the
// lowest common denominator of database/sql: statements are built by
// hand per Dialect, with either placeholder style.
package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // register driver
	_ "github.com/lib/pq"              // register driver
)

// Dialect captures the handful of ways Postgres/CockroachDB and MySQL
// diverge for the statements this package builds.
type Dialect int

// The two dialects sqlstore builds statements for.
const (
	DialectPostgres Dialect = iota
	DialectMySQL
)

// Placeholder returns the parameter marker for the i'th (1-based)
// argument in a statement, under d.
func (d Dialect) Placeholder(i int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", i)
}

// Store wraps a *sql.DB with the dialect needed to build its
// statements.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

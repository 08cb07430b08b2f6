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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaStatementsCoverEverySyncTable(t *testing.T) {
	stmts := schemaStatements("replistream")
	joined := strings.Join(stmts, "\n")
	for _, table := range []string{
		"_sync_log", "_sync_state", "_sync_session", "_sync_clients",
		"_sync_subscriptions", "_sync_mapping_state", "_sync_record_hashes",
	} {
		require.Contains(t, joined, "replistream."+table, "missing schema statement for %s", table)
	}
}

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	for _, stmt := range schemaStatements("replistream") {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			require.Contains(t, stmt, "IF NOT EXISTS")
		}
		if strings.HasPrefix(stmt, "CREATE SCHEMA") {
			require.Contains(t, stmt, "IF NOT EXISTS")
		}
	}
}

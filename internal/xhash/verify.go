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

package xhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/replistream/internal/syncmodel"
)

// BatchHash computes the SHA-256 hex digest of a version-ordered
// sequence of entries, one line per entry in the form
// "{version}:{table}:{pk_json}:{op_lower}:{payload_or_'null'}\n".
// The caller is responsible for passing entries in version order;
// BatchHash does not sort.
func BatchHash(entries []syncmodel.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		pk := mustCanonicalOrRaw(e.PKValue)
		payload := "null"
		if len(e.Payload) > 0 && string(e.Payload) != "null" {
			payload = string(mustCanonicalOrRaw(e.Payload))
		}
		line := fmt.Sprintf("%d:%s:%s:%s:%s\n",
			e.Version, e.TableName, pk, strings.ToLower(string(e.Operation)), payload)
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func mustCanonicalOrRaw(raw []byte) []byte {
	c, err := Canonical(raw)
	if err != nil {
		// Entry.Validate does not parse PK or payload JSON, so malformed
		// JSON can reach this point; fall back to the raw bytes so
		// hashing never panics on data the rest of the engine accepted.
		return raw
	}
	return c
}

// DatabaseHash computes the SHA-256 hex digest of a database
// snapshot: for each table, sorted lexicographically, emit
// "{table}\n" followed by one canonical-JSON row per line in
// primary-key order.
//
// rowsByTable must already have each table's rows sorted in
// primary-key order; DatabaseHash only sorts the table names.
func DatabaseHash(rowsByTable map[string][][]byte) string {
	tables := make([]string, 0, len(rowsByTable))
	for t := range rowsByTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	h := sha256.New()
	for _, t := range tables {
		h.Write([]byte(t))
		h.Write([]byte("\n"))
		for _, row := range rowsByTable[t] {
			canon := mustCanonicalOrRaw(row)
			h.Write(canon)
			h.Write([]byte("\n"))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

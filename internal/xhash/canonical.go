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

// Package xhash implements canonical JSON serialization, the two
// hash functions (batch hash, database hash) used to verify that
// replicas agree on the data they have exchanged, and the per-payload
// hash used by the mapping engine's "hash" tracking strategy.
//
// Canonicalization is an explicit, hand-written encoder rather than a
// reflection-based pass over whatever a host JSON library's encoder
// defaults to: key order, number formatting and the escape table are
// pinned here so that two replicas running different Go versions (or,
// eventually, different languages entirely) still agree on the byte
// stream that gets hashed.
package xhash

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Canonical parses raw as a JSON value and re-serializes it in
// canonical form: object keys sorted ordinal-ascending, no inserted
// whitespace, integers preserved as integers (never "1.0"), and the
// minimal escape set. Canonical is a fixed point:
// Canonical(Canonical(x)) == Canonical(x) for any well-formed JSON
// input.
func Canonical(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("null"), nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "xhash: invalid JSON")
	}
	var buf strings.Builder
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func encodeValue(buf *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return encodeNumber(buf, t)
	case string:
		encodeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Errorf("xhash: unsupported JSON value type %T", v)
	}
	return nil
}

// encodeNumber keeps integer literals integers: a literal with no '.',
// 'e', or 'E' is re-emitted verbatim (normalized via ParseInt where it
// fits in int64); otherwise it is emitted via strconv's shortest
// round-trip float format, so a float literal with a zero fraction
// such as "1.0" is emitted as "1". This keeps "1" from ever becoming
// "1.0", regardless of which replica produced the original payload.
func encodeNumber(buf *strings.Builder, n json.Number) error {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
		// Integer too large for int64: fall through and emit the
		// decimal text as-is, since it has no fractional part.
		buf.WriteString(s)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return errors.Wrap(err, "xhash: invalid numeric literal")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("xhash: NaN/Inf are not valid JSON numbers")
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// encodeString pins the minimal set of characters canonical JSON
// strings escape: the two JSON-mandatory characters, control
// characters, and nothing else (no escaping of '/' or non-ASCII runes,
// which are emitted as literal UTF-8).
func encodeString(buf *strings.Builder, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u`)
				hex := strconv.FormatInt(int64(r), 16)
				buf.WriteString(strings.Repeat("0", 4-len(hex)))
				buf.WriteString(hex)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

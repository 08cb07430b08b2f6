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

package lql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type fn func(args []any) (any, error)

// functions is the fixed evaluation table: upper, lower, trim,
// length, concat, coalesce, substring, dateformat (and its camel-case
// alias dateFormat), replace, left, right.
//
// Names are matched case-insensitively (see call.eval), so dateFormat
// and dateformat resolve to the same entry without needing two keys.
var functions = map[string]fn{
	"upper":      fnUpper,
	"lower":      fnLower,
	"trim":       fnTrim,
	"length":     fnLength,
	"concat":     fnConcat,
	"coalesce":   fnCoalesce,
	"substring":  fnSubstring,
	"dateformat": fnDateFormat,
	"replace":    fnReplace,
	"left":       fnLeft,
	"right":      fnRight,
}

// toStr renders an arbitrary decoded-JSON value as the string these
// functions operate on. A nil column (missing or SQL NULL) renders as
// the empty string rather than the literal "nil" or "<nil>".
func toStr(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		// Nested JSON objects/arrays passed through as map[string]any
		// or []any; not expected for normal column values.
		return fmt.Sprintf("%v", t)
	}
}

func fnUpper(args []any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("lql: upper() requires 1 argument")
	}
	return strings.ToUpper(toStr(args[0])), nil
}

func fnLower(args []any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("lql: lower() requires 1 argument")
	}
	return strings.ToLower(toStr(args[0])), nil
}

func fnTrim(args []any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("lql: trim() requires 1 argument")
	}
	return strings.TrimSpace(toStr(args[0])), nil
}

// fnLength counts Unicode code points. Go strings are UTF-8 natively
// and there is no UTF-16 surface to match, so code points is the unit
// this implementation commits to.
func fnLength(args []any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("lql: length() requires 1 argument")
	}
	return float64(len([]rune(toStr(args[0])))), nil
}

func fnConcat(args []any) (any, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(toStr(a))
	}
	return sb.String(), nil
}

// fnCoalesce returns the first argument that is neither nil nor the
// empty string, or the empty string if every argument is empty.
func fnCoalesce(args []any) (any, error) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if s, ok := a.(string); ok && s == "" {
			continue
		}
		return a, nil
	}
	return "", nil
}

// fnSubstring implements substring(value, start[, length]) with a
// 1-based, inclusive start index, following SQL convention. An
// omitted length runs to the end of the string; an out-of-range start
// yields "".
func fnSubstring(args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("lql: substring() requires at least 2 arguments")
	}
	s := []rune(toStr(args[0]))
	start := int(toFloat(args[1]))
	if start < 1 {
		start = 1
	}
	if start > len(s) {
		return "", nil
	}
	end := len(s)
	if len(args) >= 3 {
		n := int(toFloat(args[2]))
		if start-1+n < end {
			end = start - 1 + n
		}
	}
	return string(s[start-1 : end]), nil
}

func fnLeft(args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("lql: left() requires 2 arguments")
	}
	s := []rune(toStr(args[0]))
	n := int(toFloat(args[1]))
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return string(s[:n]), nil
}

func fnRight(args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("lql: right() requires 2 arguments")
	}
	s := []rune(toStr(args[0]))
	n := int(toFloat(args[1]))
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return string(s[len(s)-n:]), nil
}

func fnReplace(args []any) (any, error) {
	if len(args) < 3 {
		return nil, errors.New("lql: replace() requires 3 arguments")
	}
	return strings.ReplaceAll(toStr(args[0]), toStr(args[1]), toStr(args[2])), nil
}

// dateLayoutTokens translates the tokens used in mapping config into
// Go's reference-time layout. A small ordered replacement table
// rather than a format-string parser; the token set is fixed and
// short.
var dateLayoutTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSS", "000"},
}

// fnDateFormat implements dateformat(value, layout). value must be an
// ISO-8601 timestamp string, or its space-separated variant.
// Fractional seconds in the input are preserved through to SSS tokens
// in the output layout; inputs with no fractional component leave SSS
// as "000" rather than failing, since a mapping's layout is fixed at
// author time and must not depend on a particular row's precision.
func fnDateFormat(args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("lql: dateformat() requires 2 arguments")
	}
	raw := toStr(args[0])
	layout := toStr(args[1])
	t, err := parseFlexibleTimestamp(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "lql: dateformat: parsing %q", raw)
	}
	goLayout := layout
	for _, tok := range dateLayoutTokens {
		goLayout = strings.ReplaceAll(goLayout, tok.token, tok.layout)
	}
	// Always emit UTC, regardless of the input's original offset.
	return t.UTC().Format(goLayout), nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFlexibleTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBareColumnRefCaseSensitiveThenFallback(t *testing.T) {
	rec := Record{"Email": "a@b.com"}
	v, err := Eval("Email", rec)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", v)

	v, err = Eval("email", rec)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", v, "case-insensitive fallback must find Email for email")
}

func TestMissingColumnReturnsNilNoError(t *testing.T) {
	v, err := Eval("nope", Record{"a": 1.0})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSimpleFunctionCall(t *testing.T) {
	v, err := Eval("upper(name)", Record{"name": "alice"})
	require.NoError(t, err)
	require.Equal(t, "ALICE", v)
}

func TestPipeChaining(t *testing.T) {
	v, err := Eval("name |> trim |> upper", Record{"name": "  bob  "})
	require.NoError(t, err)
	require.Equal(t, "BOB", v)
}

func TestPipeIntoCallWithExtraArgs(t *testing.T) {
	v, err := Eval("name |> substring(1, 3)", Record{"name": "abcdef"})
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}

func TestConcatAndCoalesce(t *testing.T) {
	v, err := Eval(`concat(first, ' ', last)`, Record{"first": "Jane", "last": "Doe"})
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", v)

	v, err = Eval("coalesce(nickname, first)", Record{"first": "Jane"})
	require.NoError(t, err)
	require.Equal(t, "Jane", v)
}

func TestLeftRightLength(t *testing.T) {
	rec := Record{"s": "hello world"}
	v, _ := Eval("left(s, 5)", rec)
	require.Equal(t, "hello", v)
	v, _ = Eval("right(s, 5)", rec)
	require.Equal(t, "world", v)
	v, _ = Eval("length(s)", rec)
	require.Equal(t, float64(11), v)
}

func TestReplace(t *testing.T) {
	v, err := Eval(`replace(s, 'o', '0')`, Record{"s": "foo bar"})
	require.NoError(t, err)
	require.Equal(t, "f00 bar", v)
}

func TestDateFormatPreservesFractionalSeconds(t *testing.T) {
	v, err := Eval("dateformat(ts, 'YYYY-MM-DD HH:mm:ss.SSS')", Record{"ts": "2025-03-04T12:30:45.123Z"})
	require.NoError(t, err)
	require.Equal(t, "2025-03-04 12:30:45.123", v)
}

func TestDateFormatWithoutFractionalInput(t *testing.T) {
	v, err := Eval("dateformat(ts, 'YYYY-MM-DD')", Record{"ts": "2025-03-04T12:30:45Z"})
	require.NoError(t, err)
	require.Equal(t, "2025-03-04", v)
}

func TestComposedNameTransform(t *testing.T) {
	rec := Record{"First": "ada", "Last": "LOVELACE"}
	v, err := Eval(`concat(upper(left(First,1)), lower(substring(First,2)), ' ', First |> length())`, rec)
	require.NoError(t, err)
	require.Equal(t, "Ada 3", v)
}

func TestUnknownFunctionPassesThroughFirstArg(t *testing.T) {
	v, err := Eval("mystery(name)", Record{"name": "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", v, "unknown functions pass their argument through unchanged")
}

func TestNestedParensAndQuotedCommaInArgs(t *testing.T) {
	v, err := Eval(`concat(upper(a), ', ', lower(b))`, Record{"a": "x", "b": "Y"})
	require.NoError(t, err)
	require.Equal(t, "X, y", v)
}

func TestConstantStringLiteral(t *testing.T) {
	v, err := Eval(`'constant-value'`, Record{})
	require.NoError(t, err)
	require.Equal(t, "constant-value", v)
}

func TestUnterminatedStringIsParseError(t *testing.T) {
	_, err := Eval(`upper('abc`, Record{})
	require.Error(t, err)
}

func TestTrailingGarbageIsParseError(t *testing.T) {
	_, err := Eval(`upper(a) extra`, Record{})
	require.Error(t, err)
}

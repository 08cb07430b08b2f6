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

// Package lql implements the tiny, side-effect-free expression
// language used for column transforms and filters: bare column
// references, function calls, and left-to-right pipe chaining. It is
// a single-expression, no-loops, no-assignment sublanguage meant to
// run deterministically on untrusted schema-mapping config without a
// general-purpose sandboxed interpreter.
package lql

import (
	"strconv"
	"strings"
)

// Record is the source payload an expression evaluates against: a
// flat map of column name to already-JSON-decoded value (string,
// float64, bool, nil, or nested structures for pass-through columns).
type Record map[string]any

// Eval parses and evaluates expr against rec, returning the resulting
// value. Unknown functions pass their first argument through
// unchanged, so config written for a newer engine still evaluates.
func Eval(expr string, rec Record) (any, error) {
	p := &parser{input: expr}
	node, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, &ParseError{Expr: expr, Pos: p.pos, Msg: "unexpected trailing input"}
	}
	return node.eval(rec)
}

// ParseError reports a syntax problem in an LQL expression.
type ParseError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return "lql: " + e.Msg + " at offset " + strconv.Itoa(e.Pos) + " in " + strconv.Quote(e.Expr)
}

// node is an evaluable AST term.
type node interface {
	eval(rec Record) (any, error)
}

// colRef is a bare column reference: case-sensitive lookup first, then
// a case-insensitive fallback.
type colRef string

func (c colRef) eval(rec Record) (any, error) {
	if v, ok := rec[string(c)]; ok {
		return v, nil
	}
	lower := strings.ToLower(string(c))
	for k, v := range rec {
		if strings.ToLower(k) == lower {
			return v, nil
		}
	}
	return nil, nil
}

// literal is a quoted string or bare numeric literal.
type literal struct{ value any }

func (l literal) eval(Record) (any, error) { return l.value, nil }

// call is a function invocation, optionally with a piped-in first
// argument.
type call struct {
	fn   string
	args []node
}

func (c call) eval(rec Record) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(rec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	fn, ok := functions[strings.ToLower(c.fn)]
	if !ok {
		// Unknown function: return the first argument unchanged.
		if len(args) > 0 {
			return args[0], nil
		}
		return nil, nil
	}
	return fn(args)
}

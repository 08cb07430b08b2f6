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

	"github.com/google/wire"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideChangeLog,
	ProvideState,
	ProvideTargetPool,
)

// Config names the connection and schema a set of pgstore components
// share.
type Config struct {
	ConnString string
	SchemaName string
}

// ProvideTargetPool is called by Wire to open the target pool and
// ensure the _sync_* schema exists. The pool is closed by the cancel
// function.
func ProvideTargetPool(ctx context.Context, config *Config) (*Pool, func(), error) {
	pool, err := Open(ctx, config.ConnString)
	if err != nil {
		return nil, nil, err
	}
	if err := EnsureSchema(ctx, pool, config.SchemaName); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// ProvideChangeLog is called by Wire.
func ProvideChangeLog(pool *Pool, config *Config) *ChangeLog {
	return NewChangeLog(pool, config.SchemaName)
}

// ProvideState is called by Wire.
func ProvideState(pool *Pool, config *Config) *State {
	return NewState(pool, config.SchemaName)
}

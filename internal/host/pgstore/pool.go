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

// Package pgstore is a reference host adapter backing the engine's
// store contracts with CockroachDB/PostgreSQL over pgx/v5. It is not
// part of the sync engine proper: the engine only ever sees the
// fetch.ChangeLogStore, apply.ApplyOneFunc, and mapping.StateStore
// interfaces it depends on, and this package is one concrete way to
// satisfy them.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Pool wraps a pgxpool.Pool with the metadata the rest of this package
// needs.
type Pool struct {
	*pgxpool.Pool
	ConnectionString string
	ServerVersion    string
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	waitForStartup bool
	startupTimeout time.Duration
}

// WithWaitForStartup retries the initial ping instead of failing
// immediately, for callers racing a database container's startup.
func WithWaitForStartup(timeout time.Duration) Option {
	return func(c *openConfig) {
		c.waitForStartup = true
		c.startupTimeout = timeout
	}
}

// Open creates a pgxpool.Pool for connString, pinging it (optionally
// retrying, per WithWaitForStartup) and recording the server version.
func Open(ctx context.Context, connString string, opts ...Option) (*Pool, error) {
	cfg := openConfig{startupTimeout: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: could not create pool")
	}

	ret := &Pool{Pool: pool, ConnectionString: connString}

	deadline := time.Now().Add(cfg.startupTimeout)
	for {
		if pingErr := pool.Ping(ctx); pingErr == nil {
			break
		} else if !cfg.waitForStartup || time.Now().After(deadline) {
			pool.Close()
			return nil, errors.Wrap(pingErr, "pgstore: could not ping database")
		} else {
			log.WithError(pingErr).Info("pgstore: waiting for database to become ready")
			select {
			case <-ctx.Done():
				pool.Close()
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&ret.ServerVersion); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgstore: could not query server version")
	}
	log.WithField("version", ret.ServerVersion).Info("pgstore: connected")

	return ret, nil
}

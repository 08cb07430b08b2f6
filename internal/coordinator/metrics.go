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

package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = prometheus.DefBuckets

var (
	pullBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replistream_pull_batch_duration_seconds",
		Help:    "time spent fetching and applying one pull batch",
		Buckets: latencyBuckets,
	}, []string{"origin"})

	pullEntriesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replistream_pull_entries_applied_total",
		Help: "entries successfully applied during a pull",
	}, []string{"origin"})

	pullErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replistream_pull_errors_total",
		Help: "errors encountered while pulling and applying a batch",
	}, []string{"origin"})

	pushBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replistream_push_batch_duration_seconds",
		Help:    "time spent sending one push batch to the remote peer",
		Buckets: latencyBuckets,
	}, []string{"origin"})

	pushEntriesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replistream_push_entries_sent_total",
		Help: "entries sent during a push",
	}, []string{"origin"})
)

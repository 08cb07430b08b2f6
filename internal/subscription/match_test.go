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

package subscription

import (
	"testing"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/stretchr/testify/require"
)

func baseEntry() syncmodel.Entry {
	return syncmodel.Entry{
		TableName: "orders",
		PKValue:   []byte(`{"id":42}`),
		Operation: syncmodel.OpUpdate,
		Payload:   []byte(`{"id":42}`),
		Origin:    "A",
		Version:   1,
		Timestamp: "2025-01-01T00:00:00.000Z",
	}
}

func TestTableSubscriptionMatchesOnTableName(t *testing.T) {
	subs := []syncmodel.Subscription{
		{SubscriptionID: "s1", Type: syncmodel.SubscriptionTable, TableName: "orders"},
		{SubscriptionID: "s2", Type: syncmodel.SubscriptionTable, TableName: "customers"},
	}
	got := Match(subs, baseEntry(), "2025-01-01T00:00:00.000Z")
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].SubscriptionID)
}

func TestRecordSubscriptionMatchesFilterPK(t *testing.T) {
	subs := []syncmodel.Subscription{
		{
			SubscriptionID: "s1", Type: syncmodel.SubscriptionRecord, TableName: "orders",
			Filter: []byte(`[{"id":42},{"id":7}]`),
		},
		{
			SubscriptionID: "s2", Type: syncmodel.SubscriptionRecord, TableName: "orders",
			Filter: []byte(`[{"id":99}]`),
		},
	}
	got := Match(subs, baseEntry(), "2025-01-01T00:00:00.000Z")
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].SubscriptionID)
}

func TestExpiredSubscriptionNeverMatches(t *testing.T) {
	subs := []syncmodel.Subscription{
		{
			SubscriptionID: "s1", Type: syncmodel.SubscriptionTable, TableName: "orders",
			ExpiresAt: "2024-01-01T00:00:00.000Z",
		},
	}
	got := Match(subs, baseEntry(), "2025-01-01T00:00:00.000Z")
	require.Empty(t, got)
}

func TestQuerySubscriptionIsCandidateOnTableOnly(t *testing.T) {
	subs := []syncmodel.Subscription{
		{SubscriptionID: "s1", Type: syncmodel.SubscriptionQuery, TableName: "orders"},
	}
	got := Match(subs, baseEntry(), "2025-01-01T00:00:00.000Z")
	require.Len(t, got, 1)
}

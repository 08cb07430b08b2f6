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

// Package subscription decides, for a newly-appended entry, which
// active subscriptions should be notified.
package subscription

import (
	"strings"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/cockroachdb/replistream/internal/xhash"
)

// Match returns the subset of subs that should be notified about
// entry, having already filtered out expired subscriptions. now must
// be formatted with syncmodel.TimestampLayout so the lexicographic
// comparison against ExpiresAt is correct.
func Match(subs []syncmodel.Subscription, entry syncmodel.Entry, now string) []syncmodel.Subscription {
	var out []syncmodel.Subscription
	for _, s := range subs {
		if expired(s, now) {
			continue
		}
		if matches(s, entry) {
			out = append(out, s)
		}
	}
	return out
}

// expired reports whether s.ExpiresAt is set and in the past relative
// to now. Expiry comparison is lexicographic on the ISO-8601 strings,
// which is correct only because every timestamp in the system uses
// syncmodel.TimestampLayout's zero-padded UTC form.
func expired(s syncmodel.Subscription, now string) bool {
	return s.ExpiresAt != "" && s.ExpiresAt < now
}

func matches(s syncmodel.Subscription, entry syncmodel.Entry) bool {
	if s.TableName != entry.TableName {
		return false
	}
	switch s.Type {
	case syncmodel.SubscriptionTable:
		return true
	case syncmodel.SubscriptionRecord:
		return recordMatches(s, entry)
	case syncmodel.SubscriptionQuery:
		// Reserved for host-defined predicate evaluation: report the
		// table-level candidate and let the host apply its own
		// predicate.
		return true
	default:
		return false
	}
}

// recordMatches reports whether entry's canonical PK appears in the
// subscription's filter, a JSON array of canonical PKs. Because PKs
// are quoted JSON objects, a substring match on the canonical encoding
// of each is sufficient and avoids a full JSON-array parse per entry.
func recordMatches(s syncmodel.Subscription, entry syncmodel.Entry) bool {
	if len(s.Filter) == 0 {
		return false
	}
	pk, err := xhash.Canonical(entry.PKValue)
	if err != nil {
		return false
	}
	return strings.Contains(string(s.Filter), string(pk))
}

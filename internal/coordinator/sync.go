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
	"context"

	"github.com/cockroachdb/replistream/internal/apply"
)

// Session bundles everything one (replica, peer) pair needs to run a
// full sync: pull, then push.
type Session struct {
	MyOriginID         string
	Cfg                BatchConfig
	Suppressor         TriggerSuppressor
	FetchRemote        FetchRemoteFunc
	ApplyLocal         apply.ApplyOneFunc
	StoreServerVersion StoreServerVersionFunc
	FetchLocal         FetchLocalFunc
	SendRemote         SendRemoteFunc
	StorePushVersion   StorePushVersionFunc
}

// SyncResult reports the outcome of both halves of a Sync call.
type SyncResult struct {
	Pull PullResult
	Push PushResult
}

// Sync runs Pull then Push. Either phase's error fails the whole
// operation, but each phase's durably-persisted watermark survives
// the failure: a failed Push still leaves the Pull's gains in place,
// and vice versa.
func Sync(
	ctx context.Context, s Session, lastServerVersion, lastPushVersion int64,
) (SyncResult, error) {
	pullResult, err := Pull(ctx, s.MyOriginID, lastServerVersion, s.Cfg,
		s.Suppressor, s.FetchRemote, s.ApplyLocal, s.StoreServerVersion)
	if err != nil {
		return SyncResult{Pull: pullResult}, err
	}

	pushResult, err := Push(ctx, s.MyOriginID, lastPushVersion, s.Cfg, s.FetchLocal, s.SendRemote, s.StorePushVersion)
	return SyncResult{Pull: pullResult, Push: pushResult}, err
}

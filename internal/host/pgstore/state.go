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
	"fmt"

	"github.com/cockroachdb/replistream/internal/syncmodel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// State backs the replica watermark, session flag, tracked-client, and
// per-mapping tracking tables with simple UPSERT-based read/write
// pairs.
type State struct {
	pool   *Pool
	schema string
}

// NewState returns a State backed by pool, scoped to schemaName.
func NewState(pool *Pool, schemaName string) *State {
	return &State{pool: pool, schema: schemaName}
}

func (s *State) table(name string) string { return fmt.Sprintf("%s.%s", s.schema, name) }

// LoadReplicaState reads the watermark row for originID, returning a
// zero-valued state (with OriginID set) if none exists yet.
func (s *State) LoadReplicaState(ctx context.Context, originID string) (syncmodel.ReplicaState, error) {
	query := fmt.Sprintf(`SELECT last_server_version, last_push_version FROM %s WHERE origin_id = $1`, s.table("_sync_state"))
	var st syncmodel.ReplicaState
	st.OriginID = originID
	err := s.pool.QueryRow(ctx, query, originID).Scan(&st.LastServerVersion, &st.LastPushVersion)
	switch {
	case err == pgx.ErrNoRows:
		return st, nil
	case err != nil:
		return syncmodel.ReplicaState{}, errors.Wrap(err, "pgstore: loading replica state")
	default:
		return st, nil
	}
}

// StoreServerVersion persists a new last_server_version watermark,
// matching coordinator.StoreServerVersionFunc.
func (s *State) StoreServerVersion(ctx context.Context, originID string, version int64) error {
	return s.upsertWatermark(ctx, originID, "last_server_version", version)
}

// StorePushVersion persists a new last_push_version watermark,
// matching coordinator.StorePushVersionFunc.
func (s *State) StorePushVersion(ctx context.Context, originID string, version int64) error {
	return s.upsertWatermark(ctx, originID, "last_push_version", version)
}

func (s *State) upsertWatermark(ctx context.Context, originID, column string, version int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (origin_id, %s) VALUES ($1, $2)
		ON CONFLICT (origin_id) DO UPDATE SET %s = excluded.%s`,
		s.table("_sync_state"), column, column, column)
	if _, err := s.pool.Exec(ctx, query, originID, version); err != nil {
		return errors.Wrapf(err, "pgstore: storing %s", column)
	}
	return nil
}

// SetSessionFlag persists the echo-suppression flag for sessionID.
func (s *State) SetSessionFlag(ctx context.Context, sessionID string, active bool) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (session_id, sync_active) VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET sync_active = excluded.sync_active`, s.table("_sync_session"))
	if _, err := s.pool.Exec(ctx, query, sessionID, active); err != nil {
		return errors.Wrap(err, "pgstore: setting session flag")
	}
	return nil
}

// ListClients returns every tracked client row, for tombstone.Purge.
func (s *State) ListClients(ctx context.Context) ([]syncmodel.TrackedClient, error) {
	query := fmt.Sprintf(`SELECT origin_id, last_sync_version, last_sync_timestamp, created_at FROM %s`, s.table("_sync_clients"))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: listing clients")
	}
	defer rows.Close()

	var out []syncmodel.TrackedClient
	for rows.Next() {
		var c syncmodel.TrackedClient
		if err := rows.Scan(&c.OriginID, &c.LastSyncVersion, &c.LastSyncTimestamp, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "pgstore: scanning client")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertClient records or updates a tracked client's sync progress.
func (s *State) UpsertClient(ctx context.Context, c syncmodel.TrackedClient) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (origin_id, last_sync_version, last_sync_timestamp, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (origin_id) DO UPDATE SET
			last_sync_version = excluded.last_sync_version,
			last_sync_timestamp = excluded.last_sync_timestamp`, s.table("_sync_clients"))
	_, err := s.pool.Exec(ctx, query, c.OriginID, c.LastSyncVersion, c.LastSyncTimestamp, c.CreatedAt)
	return errors.Wrap(err, "pgstore: upserting client")
}

// DeleteClient removes a tracked client row, used by tombstone.Purge's
// removeStale callback.
func (s *State) DeleteClient(ctx context.Context, originID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE origin_id = $1`, s.table("_sync_clients")), originID)
	return errors.Wrap(err, "pgstore: deleting client")
}

// ListSubscriptions returns every stored subscription; callers pass
// the result through subscription.Match, which filters expired rows
// itself.
func (s *State) ListSubscriptions(ctx context.Context) ([]syncmodel.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT subscription_id, origin_id, type, table_name, filter, created_at, COALESCE(expires_at, '')
		FROM %s`, s.table("_sync_subscriptions"))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: listing subscriptions")
	}
	defer rows.Close()

	var out []syncmodel.Subscription
	for rows.Next() {
		var sub syncmodel.Subscription
		var typ string
		if err := rows.Scan(&sub.SubscriptionID, &sub.OriginID, &typ, &sub.TableName,
			&sub.Filter, &sub.CreatedAt, &sub.ExpiresAt); err != nil {
			return nil, errors.Wrap(err, "pgstore: scanning subscription")
		}
		sub.Type = syncmodel.SubscriptionType(typ)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpsertSubscription records or refreshes a client's subscription.
func (s *State) UpsertSubscription(ctx context.Context, sub syncmodel.Subscription) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (subscription_id, origin_id, type, table_name, filter, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (subscription_id) DO UPDATE SET
			filter = excluded.filter,
			expires_at = excluded.expires_at`, s.table("_sync_subscriptions"))
	_, err := s.pool.Exec(ctx, query, sub.SubscriptionID, sub.OriginID, string(sub.Type),
		sub.TableName, sub.Filter, sub.CreatedAt, sub.ExpiresAt)
	return errors.Wrap(err, "pgstore: upserting subscription")
}

// DeleteSubscription removes a subscription row.
func (s *State) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE subscription_id = $1`, s.table("_sync_subscriptions")),
		subscriptionID)
	return errors.Wrap(err, "pgstore: deleting subscription")
}

// GetMappingState implements mapping.StateStore.
func (s *State) GetMappingState(mappingID string) (syncmodel.MappingState, error) {
	query := fmt.Sprintf(`SELECT last_synced_version, last_sync_timestamp, records_synced FROM %s WHERE mapping_id = $1`, s.table("_sync_mapping_state"))
	var ms syncmodel.MappingState
	ms.MappingID = mappingID
	err := s.pool.QueryRow(context.Background(), query, mappingID).Scan(&ms.LastSyncedVersion, &ms.LastSyncTimestamp, &ms.RecordsSynced)
	switch {
	case err == pgx.ErrNoRows:
		return ms, nil
	case err != nil:
		return syncmodel.MappingState{}, errors.Wrap(err, "pgstore: loading mapping state")
	default:
		return ms, nil
	}
}

// PutMappingState implements mapping.StateStore.
func (s *State) PutMappingState(ms syncmodel.MappingState) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (mapping_id, last_synced_version, last_sync_timestamp, records_synced)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mapping_id) DO UPDATE SET
			last_synced_version = excluded.last_synced_version,
			last_sync_timestamp = excluded.last_sync_timestamp,
			records_synced = excluded.records_synced`, s.table("_sync_mapping_state"))
	_, err := s.pool.Exec(context.Background(), query, ms.MappingID, ms.LastSyncedVersion, ms.LastSyncTimestamp, ms.RecordsSynced)
	return errors.Wrap(err, "pgstore: storing mapping state")
}

// GetRecordHash implements mapping.StateStore.
func (s *State) GetRecordHash(mappingID string, pkValue []byte) (syncmodel.RecordHash, bool, error) {
	query := fmt.Sprintf(`SELECT payload_hash, synced_at FROM %s WHERE mapping_id = $1 AND source_pk = $2`, s.table("_sync_record_hashes"))
	var rh syncmodel.RecordHash
	rh.MappingID = mappingID
	rh.SourcePK = pkValue
	err := s.pool.QueryRow(context.Background(), query, mappingID, pkValue).Scan(&rh.PayloadHash, &rh.SyncedAt)
	switch {
	case err == pgx.ErrNoRows:
		return syncmodel.RecordHash{}, false, nil
	case err != nil:
		return syncmodel.RecordHash{}, false, errors.Wrap(err, "pgstore: loading record hash")
	default:
		return rh, true, nil
	}
}

// PutRecordHash implements mapping.StateStore.
func (s *State) PutRecordHash(rh syncmodel.RecordHash) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (mapping_id, source_pk, payload_hash, synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mapping_id, source_pk) DO UPDATE SET
			payload_hash = excluded.payload_hash,
			synced_at = excluded.synced_at`, s.table("_sync_record_hashes"))
	_, err := s.pool.Exec(context.Background(), query, rh.MappingID, []byte(rh.SourcePK), rh.PayloadHash, rh.SyncedAt)
	return errors.Wrap(err, "pgstore: storing record hash")
}

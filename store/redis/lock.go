// Package redis implements the lock subsystem over Redis. It is not a
// full backend: job definitions, the execution ledger, the DLQ, and
// aggregations stay in the primary store, while lock arbitration moves
// to Redis when many runner instances would otherwise contend on a
// single Postgres row.
//
// Acquisition is the canonical SET NX PX pattern: the lock value is the
// holder execution ID and Redis expires the key at TTL, so a crashed
// holder recovers without any reaper process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/lock"
)

var _ lock.Store = (*LockStore)(nil)

// keyPrefix namespaces all lock keys in a shared Redis instance.
const keyPrefix = "scheduler:lock:"

// LockStore implements lock.Store over a Redis client.
type LockStore struct {
	client redis.UniversalClient
}

// NewLockStore creates a LockStore over the given client.
func NewLockStore(client redis.UniversalClient) *LockStore {
	return &LockStore{client: client}
}

// lockValue is the JSON payload stored under the lock key.
type lockValue struct {
	HolderExecutionID string    `json:"holder_execution_id"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// AcquireJobLock grants the lock iff no live key exists. Redis TTL expiry
// stands in for the expired-row check of the SQL backend.
func (s *LockStore) AcquireJobLock(ctx context.Context, jobID id.JobID, executionID id.ExecutionID, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	payload, err := json.Marshal(lockValue{
		HolderExecutionID: executionID.String(),
		AcquiredAt:        now,
		ExpiresAt:         now.Add(ttl),
	})
	if err != nil {
		return false, fmt.Errorf("scheduler/redis: marshal lock: %w", err)
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+jobID.String(), payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("scheduler/redis: acquire job lock: %w", err)
	}
	return ok, nil
}

// ReleaseJobLock deletes the lock key. Releasing an absent lock is a no-op.
func (s *LockStore) ReleaseJobLock(ctx context.Context, jobID id.JobID) error {
	if err := s.client.Del(ctx, keyPrefix+jobID.String()).Err(); err != nil {
		return fmt.Errorf("scheduler/redis: release job lock: %w", err)
	}
	return nil
}

// GetJobLock retrieves the current lock. A missing key maps to
// scheduler.ErrLockNotFound; Redis has already expired stale holders.
func (s *LockStore) GetJobLock(ctx context.Context, jobID id.JobID) (*lock.Lock, error) {
	raw, err := s.client.Get(ctx, keyPrefix+jobID.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, scheduler.ErrLockNotFound
		}
		return nil, fmt.Errorf("scheduler/redis: get job lock: %w", err)
	}

	var v lockValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("scheduler/redis: unmarshal lock: %w", err)
	}

	holder, err := id.ParseExecutionID(v.HolderExecutionID)
	if err != nil {
		return nil, fmt.Errorf("scheduler/redis: parse execution id %q: %w", v.HolderExecutionID, err)
	}

	return &lock.Lock{
		JobID:             jobID,
		HolderExecutionID: holder,
		AcquiredAt:        v.AcquiredAt,
		ExpiresAt:         v.ExpiresAt,
	}, nil
}

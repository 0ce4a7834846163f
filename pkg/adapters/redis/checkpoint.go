// Package redis persists run checkpoints in Redis, so an interrupted run
// can resume its work ledger on another host.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/anneal/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// CheckpointStore saves and restores work-ledger snapshots keyed by run
// identifier.
type CheckpointStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*CheckpointStore)

// WithTTL sets the expiration for checkpoints. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *CheckpointStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *CheckpointStore) {
		s.prefix = prefix
	}
}

// New creates a checkpoint store with its own client.
func New(address, password string, db int, opts ...Option) *CheckpointStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a checkpoint store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *CheckpointStore {
	store := &CheckpointStore{
		client: client,
		prefix: "anneal:ledger:",
		ttl:    0,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *CheckpointStore) key(runID string) string {
	return s.prefix + runID
}

func (s *CheckpointStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists a ledger snapshot under the run identifier.
func (s *CheckpointStore) Save(ctx context.Context, runID string, snapshot domain.LedgerSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(runID), data, s.ttl)

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: runID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Load retrieves a ledger snapshot by run identifier.
func (s *CheckpointStore) Load(ctx context.Context, runID string) (domain.LedgerSnapshot, error) {
	var snapshot domain.LedgerSnapshot

	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if err == backend.Nil {
			return snapshot, domain.ErrCheckpointNotFound
		}
		return snapshot, fmt.Errorf("failed to get checkpoint from redis: %w", err)
	}

	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return snapshot, nil
}

// Delete removes a checkpoint.
func (s *CheckpointStore) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns run identifiers with a live checkpoint, pruning expired
// index entries lazily.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired checkpoints: %w", err)
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return runs, nil
}

// Close closes the redis client.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}

// Package queue implements the application job queue: a Redis-list-backed
// broker with enqueue, peek-oldest and remove primitives, and the service
// layer that turns them into the claim protocol consumed by the poll
// endpoint.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrEntryNotFound is returned by Remove when the entry is no longer waiting,
// typically because a concurrent claim removed it first.
var ErrEntryNotFound = errors.New("queue: entry not found")

// Entry is a waiting queue entry. Raw holds the exact encoded list value so
// Remove can target this specific entry with LREM.
type Entry struct {
	ID  string
	Raw string
	Job models.ApplicationJob
}

// envelope is the on-wire list value. The broker-assigned id makes every
// entry unique even when the same job payload is enqueued twice.
type envelope struct {
	ID  string                `json:"id"`
	Job models.ApplicationJob `json:"job"`
}

// Store is the Redis-backed job queue store. All operations degrade into
// errors for the service layer to absorb; nothing here panics on a dead
// broker.
type Store struct {
	client      *redis.Client
	keyPrefix   string
	peekTimeout time.Duration
	log         logger.Logger
}

func NewStore(client *redis.Client, cfg config.QueueConfig, log logger.Logger) *Store {
	return &Store{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		peekTimeout: config.GetDuration(cfg.PeekTimeout),
		log:         log,
	}
}

func (s *Store) listKey() string {
	return s.keyPrefix + ":application"
}

func (s *Store) counterKey(name string) string {
	return fmt.Sprintf("%s:application:%s", s.keyPrefix, name)
}

// Enqueue appends the job to the tail of the list and returns the
// broker-assigned entry id.
func (s *Store) Enqueue(ctx context.Context, job models.ApplicationJob) (string, error) {
	env := envelope{ID: uuid.NewString(), Job: job}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("queue: encode entry: %w", err)
	}

	if err := s.client.RPush(ctx, s.listKey(), raw).Err(); err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return env.ID, nil
}

// PeekOldest returns up to count oldest waiting entries without removing
// them. The call is bounded by the configured peek timeout so a dead broker
// never hangs the poll path.
func (s *Store) PeekOldest(ctx context.Context, count int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.peekTimeout)
	defer cancel()

	raws, err := s.client.LRange(ctx, s.listKey(), 0, int64(count)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// A malformed entry would wedge the head of the queue forever;
			// drop it and keep going.
			s.log.Warn("discarding malformed queue entry", map[string]interface{}{
				"error": err.Error(),
			})
			s.client.LRem(ctx, s.listKey(), 1, raw)
			continue
		}
		entries = append(entries, Entry{ID: env.ID, Raw: raw, Job: env.Job})
	}
	return entries, nil
}

// Remove deletes a specific waiting entry. Claiming is peek-then-remove, so
// a concurrent claim may have taken the entry already; that case surfaces as
// ErrEntryNotFound.
func (s *Store) Remove(ctx context.Context, entry Entry) error {
	removed, err := s.client.LRem(ctx, s.listKey(), 1, entry.Raw).Result()
	if err != nil {
		return fmt.Errorf("queue: remove: %w", err)
	}
	if removed == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Counts returns the raw queue counters.
func (s *Store) Counts(ctx context.Context) (models.QueueStats, error) {
	var stats models.QueueStats

	waiting, err := s.client.LLen(ctx, s.listKey()).Result()
	if err != nil {
		return stats, fmt.Errorf("queue: counts: %w", err)
	}
	stats.Waiting = waiting

	for name, dst := range map[string]*int64{
		"active":    &stats.Active,
		"completed": &stats.Completed,
		"failed":    &stats.Failed,
	} {
		val, err := s.client.Get(ctx, s.counterKey(name)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return models.QueueStats{}, fmt.Errorf("queue: counts: %w", err)
		}
		*dst = val
	}
	return stats, nil
}

// IncrActive marks one claimed job as in flight.
func (s *Store) IncrActive(ctx context.Context) error {
	return s.client.Incr(ctx, s.counterKey("active")).Err()
}

// DecrActive clears one in-flight job after its completion report.
func (s *Store) DecrActive(ctx context.Context) error {
	return s.client.Decr(ctx, s.counterKey("active")).Err()
}

// IncrCompleted bumps the completed counter.
func (s *Store) IncrCompleted(ctx context.Context) error {
	return s.client.Incr(ctx, s.counterKey("completed")).Err()
}

// IncrFailed bumps the failed counter.
func (s *Store) IncrFailed(ctx context.Context) error {
	return s.client.Incr(ctx, s.counterKey("failed")).Err()
}

// Ping tests broker connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

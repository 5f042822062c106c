// internal/queue/store_test.go
package queue

import (
	"context"
	"testing"

	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		KeyPrefix:      "applyflow:queue",
		PeekTimeout:    3000,
		ClaimDeadline:  4000,
		EnqueueRetries: 3,
		EnqueueBackoff: 1,
	}
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, testQueueConfig(), logger.NewTestLogger(t)), mr
}

func testJob(applicationID string) models.ApplicationJob {
	return models.ApplicationJob{
		ApplicationID: applicationID,
		UserID:        "user-001",
		JobID:         "job-001",
		ResumeID:      "resume-001",
		Platform:      models.PlatformLinkedIn,
		JobURL:        "https://linkedin.com/jobs/1",
		Email:         "candidate@example.com",
	}
}

// ==========================
// Store Tests
// ==========================

func TestStore_EnqueuePeekOldest_FIFO(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, testJob("app-1"))
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, testJob("app-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	entries, err := store.PeekOldest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app-1", entries[0].Job.ApplicationID)
	assert.Equal(t, first, entries[0].ID)

	// Peek does not remove
	entries, err = store.PeekOldest(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_Remove_ClaimsSpecificEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, testJob("app-1"))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, testJob("app-2"))
	require.NoError(t, err)

	entries, err := store.PeekOldest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Remove(ctx, entries[0]))

	remaining, err := store.PeekOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "app-2", remaining[0].Job.ApplicationID)
}

func TestStore_Remove_MissingEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, testJob("app-1"))
	require.NoError(t, err)

	entries, err := store.PeekOldest(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, entries[0]))

	// Second removal of the same entry: already claimed
	err = store.Remove(ctx, entries[0])
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestStore_PeekOldest_EmptyQueue(t *testing.T) {
	store, _ := newTestStore(t)

	entries, err := store.PeekOldest(context.Background(), 1)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PeekOldest_DiscardsMalformedEntry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Lpush("applyflow:queue:application", "not-json")
	_, err := store.Enqueue(ctx, testJob("app-1"))
	require.NoError(t, err)

	entries, err := store.PeekOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app-1", entries[0].Job.ApplicationID)
}

func TestStore_Counts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, testJob("app-1"))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, testJob("app-2"))
	require.NoError(t, err)

	require.NoError(t, store.IncrActive(ctx))
	require.NoError(t, store.IncrCompleted(ctx))
	require.NoError(t, store.IncrFailed(ctx))

	stats, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestStore_Enqueue_BrokerDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Enqueue(context.Background(), testJob("app-1"))
	assert.Error(t, err)
}

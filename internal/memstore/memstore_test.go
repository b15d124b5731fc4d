package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsmatch/matchqueue/internal/matching"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestPreferenceStore_GetDefaults(t *testing.T) {
	store := NewPreferenceStore(nil)

	prefs, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", prefs.UserID)
	assert.Equal(t, matching.DefaultMinAge, prefs.MinAge)
	assert.Equal(t, 0, store.Len())
}

func TestPreferenceStore_UpsertAndClone(t *testing.T) {
	clock := newClock()
	store := NewPreferenceStore(clock.Now)
	ctx := context.Background()

	saved, err := store.Upsert(ctx, "u1", func(p *matching.MatchingPreferences) error {
		p.MinAge = 25
		p.Interests = matching.NewTagSet("hiking")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 25, saved.MinAge)
	assert.Equal(t, clock.Now(), saved.CreatedAt)

	saved.Interests[0] = "mutated"
	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, matching.Set[string]{"hiking"}, got.Interests)
}

func TestPreferenceStore_UpsertMutateErrorWritesNothing(t *testing.T) {
	store := NewPreferenceStore(nil)
	ctx := context.Background()
	_, err := store.Upsert(ctx, "u1", func(p *matching.MatchingPreferences) error {
		p.MinAge = 30
		return nil
	})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, "u1", func(p *matching.MatchingPreferences) error {
		p.MinAge = 99
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.MinAge)
}

func TestPreferenceStore_GetManyOmitsMissing(t *testing.T) {
	store := NewPreferenceStore(nil)
	ctx := context.Background()
	_, err := store.Upsert(ctx, "a", func(*matching.MatchingPreferences) error { return nil })
	require.NoError(t, err)

	found, err := store.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, "a")
}

func TestQueueStore_JoinSemantics(t *testing.T) {
	clock := newClock()
	store := NewQueueStore(clock.Now)
	ctx := context.Background()

	first, err := store.Join(ctx, "u1", "casual")
	require.NoError(t, err)

	again, err := store.Join(ctx, "u1", "casual")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same intent keeps the entry")

	clock.Advance(time.Minute)
	switched, err := store.Join(ctx, "u1", "serious")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, switched.ID)

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, matching.QueueStatusLeft, entries[0].Status)
	assert.Equal(t, matching.QueueStatusWaiting, entries[1].Status)
}

func TestQueueStore_ConcurrentJoinKeepsOneWaiting(t *testing.T) {
	store := NewQueueStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Join(ctx, "u1", fmt.Sprintf("intent-%d", i%3))
		}(i)
	}
	wg.Wait()

	waiting := 0
	for _, e := range store.Entries() {
		if e.UserID == "u1" && e.Status == matching.QueueStatusWaiting {
			waiting++
		}
	}
	assert.Equal(t, 1, waiting)
}

func TestQueueStore_ListWaitingOrderAndFilter(t *testing.T) {
	clock := newClock()
	store := NewQueueStore(clock.Now)
	ctx := context.Background()

	for _, id := range []string{"c", "b", "a"} {
		_, err := store.Join(ctx, id, "casual")
		require.NoError(t, err)
	}
	clock.Advance(time.Second)
	_, err := store.Join(ctx, "0-late", "casual")
	require.NoError(t, err)
	_, err = store.Join(ctx, "other", "serious")
	require.NoError(t, err)

	entries, err := store.ListWaiting(ctx, "casual", "b", 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	assert.Equal(t, []string{"a", "c", "0-late"}, ids)

	limited, err := store.ListWaiting(ctx, "casual", "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestQueueStore_LeaveMatchedExpire(t *testing.T) {
	clock := newClock()
	store := NewQueueStore(clock.Now)
	ctx := context.Background()

	_, _ = store.Join(ctx, "old", "casual")
	clock.Advance(time.Hour)
	_, _ = store.Join(ctx, "leaver", "casual")
	_, _ = store.Join(ctx, "matched", "casual")

	left, err := store.Leave(ctx, "leaver")
	require.NoError(t, err)
	assert.True(t, left)

	left, err = store.Leave(ctx, "leaver")
	require.NoError(t, err)
	assert.False(t, left)

	matched, err := store.MarkMatched(ctx, "matched")
	require.NoError(t, err)
	assert.True(t, matched)

	expired, err := store.ExpireStale(ctx, clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	waiting, err := store.ListWaiting(ctx, "casual", "", 10)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestAttemptStore_InsertIdempotentAndHistory(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		a := &matching.MatchAttempt{
			ID:        fmt.Sprintf("a%d", i),
			User1ID:   "seeker",
			User2ID:   fmt.Sprintf("c%d", i),
			Scores:    matching.ScoreBreakdown{Total: 0.5},
			Status:    matching.AttemptPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(ctx, a))
		require.NoError(t, store.Insert(ctx, a))
	}
	assert.Len(t, store.All(), 5)

	page, total, err := store.ListByUser(ctx, "seeker", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "a3", page[0].ID)
	assert.Equal(t, "a2", page[1].ID)

	asCandidate, total, err := store.ListByUser(ctx, "c4", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, asCandidate, 1)

	empty, total, err := store.ListByUser(ctx, "seeker", 10, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, empty)
}

func TestAttemptStore_Stats(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	inserts := []matching.MatchAttempt{
		{ID: "1", Scores: matching.ScoreBreakdown{Total: 0.2}, Status: matching.AttemptAccepted, CreatedAt: day.Add(-time.Hour)},
		{ID: "2", Scores: matching.ScoreBreakdown{Total: 0.4}, Status: matching.AttemptPending, CreatedAt: day.Add(time.Hour)},
		{ID: "3", Scores: matching.ScoreBreakdown{Total: 0.6}, Status: matching.AttemptRejected, CreatedAt: day},
	}
	for i := range inserts {
		require.NoError(t, store.Insert(ctx, &inserts[i]))
	}

	stats, err := store.Stats(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMatches)
	assert.Equal(t, int64(2), stats.MatchesToday)
	assert.Equal(t, int64(1), stats.SuccessfulMatches)
	assert.InDelta(t, 0.4, stats.AvgMatchScore, 1e-9)
}

func TestAttemptStore_RejectsMissingID(t *testing.T) {
	err := NewAttemptStore().Insert(context.Background(), &matching.MatchAttempt{})
	assert.Error(t, err)
}

func TestStores_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPreferenceStore(nil).Get(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewQueueStore(nil).Join(ctx, "u1", "casual")
	assert.ErrorIs(t, err, context.Canceled)
	err = NewAttemptStore().Insert(ctx, &matching.MatchAttempt{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

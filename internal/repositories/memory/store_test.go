package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-exchange/internal/models"
	"skill-exchange/internal/repositories"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestResolveIsGuarded(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.CreateRequest(ctx, models.SkillRequest{ID: "r1", FromUser: "a", ToUser: "b", Status: models.RequestStatusPending})
	require.NoError(t, err)

	derive := func(req models.SkillRequest) models.SkillSession {
		return models.SkillSession{ID: "s-" + req.ID, RequestID: req.ID, Status: models.SessionStatusActive}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Resolve(ctx, "r1", models.RequestStatusAccepted, derive)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if assert.ErrorIs(t, err, repositories.ErrRequestNotPending) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 7, rejected)
	assert.Len(t, store.sessions, 1)
}

func TestResolveUnknownRequest(t *testing.T) {
	store := NewStore(nil)
	_, _, err := store.Resolve(context.Background(), "missing", models.RequestStatusRejected, nil)
	assert.ErrorIs(t, err, repositories.ErrRequestNotFound)
}

func TestCreateSessionIdempotentByRequest(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, models.SkillSession{ID: "s1", RequestID: "r1", Status: models.SessionStatusActive})
	require.NoError(t, err)
	second, err := store.CreateSession(ctx, models.SkillSession{ID: "s2", RequestID: "r1", Status: models.SessionStatusActive})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.sessions, 1)
}

func TestListIncomingNewestFirst(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(clock.Now)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := store.CreateRequest(ctx, models.SkillRequest{ID: id, FromUser: "a", ToUser: "b", Status: models.RequestStatusPending})
		require.NoError(t, err)
	}
	_, _, err := store.Resolve(ctx, "r2", models.RequestStatusRejected, nil)
	require.NoError(t, err)

	all, err := store.ListIncoming(ctx, "b", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending, err := store.ListIncoming(ctx, "b", []models.RequestStatus{models.RequestStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	outgoing, err := store.ListOutgoing(ctx, "b", nil)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestCompleteSessionTransitions(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, models.SkillSession{ID: "s1", RequestID: "r1", Status: models.SessionStatusActive})
	require.NoError(t, err)

	done, err := store.CompleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	_, err = store.CompleteSession(ctx, "s1")
	assert.ErrorIs(t, err, repositories.ErrSessionNotActive)

	_, err = store.CompleteSession(ctx, "nope")
	assert.ErrorIs(t, err, repositories.ErrSessionNotFound)
}

func TestListAcceptedWithoutSession(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.CreateRequest(ctx, models.SkillRequest{ID: "r1", FromUser: "a", ToUser: "b", Status: models.RequestStatusPending})
	require.NoError(t, err)
	store.MarkAcceptedWithoutSession("r1")

	orphans, err := store.ListAcceptedWithoutSession(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "r1", orphans[0].ID)

	_, err = store.CreateSession(ctx, models.SkillSession{ID: "s1", RequestID: "r1", Status: models.SessionStatusActive})
	require.NoError(t, err)

	orphans, err = store.ListAcceptedWithoutSession(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tips-service/internal/domain"
	"tips-service/internal/service"
	"tips-service/internal/store"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTipService(clock *manualClock) service.TipService {
	return service.NewTipService(
		store.New(domain.KindTip, store.WithClock(clock.Now)),
		store.New(domain.KindComment, store.WithClock(clock.Now)),
	)
}

func TestTipService_TipLifecycle(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTipService(clock)
	ctx := context.Background()

	tip, err := svc.NewTip(ctx, "alice", "msg1")
	require.NoError(t, err)

	got, err := svc.GetTip(ctx, tip.ID, true)
	require.NoError(t, err)
	assert.Equal(t, got.CreatedAt, got.ModifiedAt)
	assert.Empty(t, got.Comments)
	assert.NotNil(t, got.Comments, "requested comments are an empty list, not absent")

	clock.Advance(time.Second)
	_, err = svc.UpdateTip(ctx, tip.ID, "alice", "msg2")
	require.NoError(t, err)

	got, err = svc.GetTip(ctx, tip.ID, false)
	require.NoError(t, err)
	assert.NotEqual(t, got.CreatedAt, got.ModifiedAt)
	assert.Equal(t, "msg2", got.Content)
	assert.Nil(t, got.Comments)

	history, err := svc.TipHistory(ctx, tip.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "msg2", history[0].Content)
	assert.Equal(t, "msg1", history[1].Content)

	_, err = svc.UpdateTip(ctx, tip.ID, "bob", "hijack")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.UpdateTip(ctx, tip.ID+1, "bob", "hijack")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTipService_Comments(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTipService(clock)
	ctx := context.Background()

	tip, err := svc.NewTip(ctx, "alice", "tip")
	require.NoError(t, err)
	clock.Advance(time.Second)
	updated, err := svc.UpdateTip(ctx, tip.ID, "alice", "tip, edited")
	require.NoError(t, err)

	comment, err := svc.NewComment(ctx, tip.ID, "bob", "first")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := svc.NewComment(ctx, tip.ID, "alice", "second")
	require.NoError(t, err)

	// comment creation leaves the tip untouched
	got, err := svc.GetTip(ctx, tip.ID, true)
	require.NoError(t, err)
	assert.Equal(t, updated.ModifiedAt, got.ModifiedAt)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, comment.ID, got.Comments[0].ID)
	assert.Equal(t, second.ID, got.Comments[1].ID)
	assert.Equal(t, got.ModifiedAt, got.Comments[0].CreatedAt)

	history, err := svc.TipHistory(ctx, tip.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	listed, err := svc.CommentsOf(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Comments, listed)

	fetched, err := svc.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", fetched.Owner)
	assert.Equal(t, "first", fetched.Content)

	_, err = svc.UpdateComment(ctx, comment.ID, "alice", "not yours")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.UpdateComment(ctx, second.ID+1, "alice", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	clock.Advance(time.Second)
	_, err = svc.UpdateComment(ctx, comment.ID, "bob", "first, edited")
	require.NoError(t, err)
	versions, err := svc.CommentHistory(ctx, comment.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "first, edited", versions[0].Content)
	assert.Equal(t, "first", versions[1].Content)
}

func TestTipService_MissingTip(t *testing.T) {
	svc := newTipService(&manualClock{now: time.Now()})
	ctx := context.Background()

	_, err := svc.GetTip(ctx, 1, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.TipHistory(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CommentsOf(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.NewComment(ctx, 1, "alice", "orphan")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetComment(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CommentHistory(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTipService_ListTipsAcrossOwners(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTipService(clock)
	ctx := context.Background()

	first, err := svc.NewTip(ctx, "alice", "a")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := svc.NewTip(ctx, "bob", "b")
	require.NoError(t, err)

	tips, err := svc.ListTips(ctx)
	require.NoError(t, err)
	require.Len(t, tips, 2)
	assert.Equal(t, second.ID, tips[0].ID)
	assert.Equal(t, "bob", tips[0].Owner)
	assert.Equal(t, first.ID, tips[1].ID)
}

func TestTipService_ConcurrentCommentsKeepCreationOrder(t *testing.T) {
	svc := service.NewTipService(store.New(domain.KindTip), store.New(domain.KindComment))
	ctx := context.Background()

	tip, err := svc.NewTip(ctx, "alice", "busy")
	require.NoError(t, err)

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.NewComment(ctx, tip.ID, "bob", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	comments, err := svc.CommentsOf(ctx, tip.ID)
	require.NoError(t, err)
	require.Len(t, comments, workers)
	for i := 1; i < len(comments); i++ {
		assert.Less(t, comments[i-1].ID, comments[i].ID)
	}
}

func TestTipService_Snapshot(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTipService(clock)
	ctx := context.Background()

	tip, err := svc.NewTip(ctx, "alice", "tip")
	require.NoError(t, err)
	comment, err := svc.NewComment(ctx, tip.ID, "bob", "reply")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.UpdateTip(ctx, tip.ID, "alice", "tip v2")
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Tips, 1)
	require.Len(t, snap.Comments, 1)
	assert.Equal(t, []uint64{comment.ID}, snap.Tips[0].CommentIDs)
	assert.Len(t, snap.Tips[0].Versions, 2)
	assert.Equal(t, tip.ID, snap.Comments[0].TipID)
	assert.Equal(t, "reply", snap.Comments[0].Comment.Content)
}

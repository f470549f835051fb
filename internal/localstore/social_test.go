package localstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tick returns a clock that advances one second per call.
func tick() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newLog() *Notifications {
	n := NewNotifications(NewMemory(0))
	n.now = tick()
	return n
}

func actions(t *testing.T, n *Notifications) []string {
	t.Helper()
	list, err := n.List(context.Background())
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Action + ":" + e.RecordName
	}
	return out
}

func TestNotifications_OrderAndNoDedupe(t *testing.T) {
	ctx := context.Background()
	n := newLog()

	require.NoError(t, n.Append(ctx, "updated", "Graph Theory"))
	require.NoError(t, n.Append(ctx, "updated", "Graph Theory"))
	require.NoError(t, n.Append(ctx, "deleted", ""))

	assert.Equal(t, []string{
		"updated:Graph Theory",
		"updated:Graph Theory",
		"deleted:Untitled",
	}, actions(t, n))

	require.NoError(t, n.Clear(ctx))
	assert.Empty(t, actions(t, n))
}

func TestNotifications_ConcurrentAppendsAllLand(t *testing.T) {
	ctx := context.Background()
	n := NewNotifications(NewMemory(0))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = n.Append(ctx, "liked", "Essay")
		}()
	}
	wg.Wait()
	assert.Len(t, actions(t, n), 20)
}

func TestSocial_ToggleLikeCountsEachActorOnce(t *testing.T) {
	ctx := context.Background()
	log := newLog()
	s := NewSocial(NewMemory(0), log)
	target := Target{Kind: "post", ID: "7", Name: "Graph Theory"}

	on, n, err := s.ToggleLike(ctx, target, "u1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, 1, n)

	_, n, _ = s.ToggleLike(ctx, target, "u2")
	assert.Equal(t, 2, n)

	on, n, _ = s.ToggleLike(ctx, target, "u1")
	assert.False(t, on)
	assert.Equal(t, 1, n)

	sum, err := s.Summary(ctx, target, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Likes)
	assert.True(t, sum.Liked)
	assert.False(t, sum.Following)

	assert.Equal(t, []string{
		"liked:Graph Theory",
		"liked:Graph Theory",
		"unliked:Graph Theory",
	}, actions(t, log))

	_, _, err = s.ToggleLike(ctx, target, "")
	assert.Error(t, err)
}

func TestSocial_FollowIsPerKind(t *testing.T) {
	ctx := context.Background()
	s := NewSocial(NewMemory(0), nil)

	_, _, err := s.ToggleFollow(ctx, Target{Kind: "blog", ID: "1"}, "u1")
	require.NoError(t, err)

	sum, _ := s.Summary(ctx, Target{Kind: "post", ID: "1"}, "u1")
	assert.Equal(t, 0, sum.Follows)
	sum, _ = s.Summary(ctx, Target{Kind: "blog", ID: "1"}, "u1")
	assert.Equal(t, 1, sum.Follows)
	assert.True(t, sum.Following)
}

func TestSocial_CommentLifecycle(t *testing.T) {
	ctx := context.Background()
	log := newLog()
	s := NewSocial(NewMemory(0), log)
	target := Target{Kind: "blog", ID: "3", Name: "Night Market"}

	_, err := s.AddComment(ctx, target, "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	c, err := s.AddComment(ctx, target, "u1", "  Great photos  ")
	require.NoError(t, err)
	assert.Equal(t, "Great photos", c.Text)
	assert.NotEmpty(t, c.ID)

	assert.ErrorIs(t, s.EditComment(ctx, target, c.ID, "u2", "hijack"), ErrNotAuthor)
	assert.ErrorIs(t, s.EditComment(ctx, target, "nope", "u1", "x"), ErrNotFound)
	require.NoError(t, s.EditComment(ctx, target, c.ID, "u1", "Great photos!"))

	thread, err := s.Comments(ctx, target)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "Great photos!", thread[0].Text)
	assert.False(t, thread[0].UpdatedAt.IsZero())

	require.NoError(t, s.DeleteComment(ctx, target, c.ID, "u1"))
	thread, _ = s.Comments(ctx, target)
	assert.Empty(t, thread)

	assert.Equal(t, []string{
		"commented:Night Market",
		"updated comment:Night Market",
		"deleted comment:Night Market",
	}, actions(t, log))
}

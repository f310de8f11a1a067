package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
)

func TestScore_DecaysWithAge(t *testing.T) {
	p := DefaultTrendingParams()
	now := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	c := EngagementCounts{Likes: 100}

	a := p.Score(c, now.Add(-time.Hour), now)
	b := p.Score(c, now.Add(-100*time.Hour), now)
	assert.Greater(t, a, b)

	prev := p.Score(c, now, now)
	for h := 1; h <= 168; h++ {
		s := p.Score(c, now.Add(-time.Duration(h)*time.Hour), now)
		assert.LessOrEqual(t, s, prev)
		prev = s
	}

	// 未来时间按 age=0 处理
	assert.Equal(t, p.Score(c, now, now), p.Score(c, now.Add(time.Hour), now))
}

func TestScore_Weights(t *testing.T) {
	p := DefaultTrendingParams()
	now := time.Now()
	// age=0 时 decay = 2^-1.5
	decay := 0.35355339059327373
	got := p.Score(EngagementCounts{Likes: 1, Comments: 1, Shares: 1, Views: 10}, now, now)
	assert.InDelta(t, 7.0*decay, got, 1e-9)
	assert.Zero(t, p.Score(EngagementCounts{}, now, now))
}

func seedPosts(t *testing.T, repo repository.PostRepository, n int, createdAt time.Time) []*model.Post {
	t.Helper()
	posts := make([]*model.Post, n)
	for i := 0; i < n; i++ {
		posts[i] = &model.Post{
			AuthorID:   "a",
			Title:      fmt.Sprintf("post %02d", i),
			LikesCount: int64(i * 10),
			ViewsCount: int64(i),
			CreatedAt:  createdAt,
		}
		require.NoError(t, repo.Create(context.Background(), posts[i]))
	}
	return posts
}

func TestTrendingScorer_FlagsTopN(t *testing.T) {
	db := setupDB(t)
	clock := newFakeClock()
	posts := repository.NewPostRepository(db)
	seeded := seedPosts(t, posts, 15, clock.Now().Add(-3*time.Hour))
	scorer := NewTrendingScorer(posts, DefaultTrendingParams(), WithClock(clock.Now))

	res, err := scorer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TrendingResult{Total: 15, Processed: 15, TrendingCount: 10}, res)

	trending, err := posts.ListTrending(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, trending, 10)
	want := map[string]bool{}
	for _, p := range seeded[5:] {
		want[p.ID] = true
	}
	for _, p := range trending {
		assert.True(t, want[p.ID], "unexpected trending post %s", p.Title)
	}

	// 非热门条目的分数同样被写入
	low, err := posts.GetByID(context.Background(), seeded[1].ID)
	require.NoError(t, err)
	assert.False(t, low.IsTrending)
	assert.Greater(t, low.EngagementScore, 0.0)
}

func TestTrendingScorer_Idempotent(t *testing.T) {
	db := setupDB(t)
	clock := newFakeClock()
	posts := repository.NewPostRepository(db)
	seedPosts(t, posts, 12, clock.Now().Add(-time.Hour))
	scorer := NewTrendingScorer(posts, DefaultTrendingParams(), WithClock(clock.Now))
	ctx := context.Background()

	snapshot := func() map[string]model.Post {
		var rows []model.Post
		require.NoError(t, db.Find(&rows).Error)
		out := make(map[string]model.Post, len(rows))
		for _, r := range rows {
			out[r.ID] = r
		}
		return out
	}

	_, err := scorer.Run(ctx)
	require.NoError(t, err)
	first := snapshot()
	_, err = scorer.Run(ctx)
	require.NoError(t, err)
	second := snapshot()

	for id, p := range first {
		assert.Equal(t, p.EngagementScore, second[id].EngagementScore)
		assert.Equal(t, p.IsTrending, second[id].IsTrending)
	}
}

func TestTrendingScorer_LeavesOldPostsUntouched(t *testing.T) {
	db := setupDB(t)
	clock := newFakeClock()
	posts := repository.NewPostRepository(db)
	ctx := context.Background()

	old := &model.Post{AuthorID: "a", Title: "old", LikesCount: 1000, CreatedAt: clock.Now().Add(-8 * 24 * time.Hour)}
	require.NoError(t, posts.Create(ctx, old))
	require.NoError(t, posts.UpdateScore(ctx, old.ID, 42, true))
	seedPosts(t, posts, 3, clock.Now().Add(-time.Hour))

	res, err := NewTrendingScorer(posts, DefaultTrendingParams(), WithClock(clock.Now)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	got, err := posts.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTrending)
	assert.Equal(t, 42.0, got.EngagementScore)
}

func TestTrendingScorer_EmptySet(t *testing.T) {
	scorer := NewTrendingScorer(repository.NewPostRepository(setupDB(t)), DefaultTrendingParams())
	res, err := scorer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TrendingResult{}, res)
}

// stubPosts 只实现评分需要的方法
type stubPosts struct {
	repository.PostRepository
	candidates []*model.Post
	listErr    error
	failIDs    map[string]bool

	mu      sync.Mutex
	updates map[string]bool
}

func (s *stubPosts) ListScoringCandidates(context.Context, time.Time) ([]*model.Post, error) {
	return s.candidates, s.listErr
}

func (s *stubPosts) UpdateScore(_ context.Context, id string, _ float64, trending bool) error {
	if s.failIDs[id] {
		return errors.New("write failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = map[string]bool{}
	}
	s.updates[id] = trending
	return nil
}

func TestTrendingScorer_FetchFailureWritesNothing(t *testing.T) {
	stub := &stubPosts{listErr: errors.New("db down")}
	res, err := NewTrendingScorer(stub, DefaultTrendingParams()).Run(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Empty(t, stub.updates)
}

func TestTrendingScorer_PartialFailure(t *testing.T) {
	now := time.Now()
	stub := &stubPosts{failIDs: map[string]bool{"p3": true}}
	for i := 0; i < 6; i++ {
		stub.candidates = append(stub.candidates, &model.Post{ID: fmt.Sprintf("p%d", i), LikesCount: int64(i), CreatedAt: now})
	}

	res, err := NewTrendingScorer(stub, DefaultTrendingParams()).Run(context.Background())
	var partial *PartialBatchError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 5, partial.Processed)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, 6, partial.Total)
	require.NotNil(t, res)
	assert.Equal(t, 5, res.Processed)
	assert.Len(t, stub.updates, 5)
}

func TestTrendingScorer_StableTieBreak(t *testing.T) {
	now := time.Now()
	stub := &stubPosts{}
	for i := 0; i < 12; i++ {
		stub.candidates = append(stub.candidates, &model.Post{ID: fmt.Sprintf("p%02d", i), LikesCount: 5, CreatedAt: now})
	}

	_, err := NewTrendingScorer(stub, DefaultTrendingParams()).Run(context.Background())
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		assert.Equal(t, i < 10, stub.updates[fmt.Sprintf("p%02d", i)], "p%02d", i)
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement-service/internal/model"
)

func TestPostRepository_Lifecycle(t *testing.T) {
	repo := NewPostRepository(setupDB(t))
	ctx := context.Background()

	p := &model.Post{AuthorID: "a1", Title: "Hello Gophers"}
	require.NoError(t, repo.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	require.NoError(t, repo.Increment(ctx, p.ID, CounterComments, 2))
	require.NoError(t, repo.Increment(ctx, p.ID, CounterViews, 1))
	require.NoError(t, repo.SetPinned(ctx, p.ID, true))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentsCount)
	assert.Equal(t, int64(1), got.ViewsCount)
	assert.True(t, got.IsPinned)

	assert.Error(t, repo.Increment(ctx, p.ID, Counter("title"), 1))
	assert.ErrorIs(t, repo.Increment(ctx, "missing", CounterViews, 1), ErrNotFound)
	assert.ErrorIs(t, repo.SetBanned(ctx, "missing", true), ErrNotFound)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := repo.SearchByTitle(ctx, "gopher", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestPostRepository_DecrementMissingPost(t *testing.T) {
	repo := NewPostRepository(setupDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.Increment(ctx, "missing", CounterLikes, -1), ErrNotFound)

	// 计数已为 0 时递减不报错，也不会变成负数
	p := &model.Post{AuthorID: "a1", Title: "zero"}
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.Increment(ctx, p.ID, CounterLikes, -1))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.LikesCount)
}

func TestPostRepository_ScoringCandidates(t *testing.T) {
	repo := NewPostRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)

	fresh := &model.Post{AuthorID: "a", Title: "fresh", CreatedAt: now.Add(-time.Hour)}
	older := &model.Post{AuthorID: "a", Title: "older", CreatedAt: now.Add(-48 * time.Hour)}
	stale := &model.Post{AuthorID: "a", Title: "stale", CreatedAt: now.Add(-10 * 24 * time.Hour)}
	banned := &model.Post{AuthorID: "a", Title: "banned", CreatedAt: now.Add(-time.Hour)}
	for _, p := range []*model.Post{fresh, older, stale, banned} {
		require.NoError(t, repo.Create(ctx, p))
	}
	require.NoError(t, repo.SetBanned(ctx, banned.ID, true))

	res, err := repo.ListScoringCandidates(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, fresh.ID, res[0].ID)
	assert.Equal(t, older.ID, res[1].ID)

	require.NoError(t, repo.UpdateScore(ctx, older.ID, 9.5, true))
	require.NoError(t, repo.UpdateScore(ctx, fresh.ID, 1.5, false))

	trending, err := repo.ListTrending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, older.ID, trending[0].ID)

	byScore, err := repo.ListByScore(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, byScore, 3)
	assert.Equal(t, older.ID, byScore[0].ID)
}

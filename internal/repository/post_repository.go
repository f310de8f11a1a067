package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement-service/internal/model"
)

// Counter 可由用户行为累加的计数列
type Counter string

const (
	CounterLikes    Counter = "likes_count"
	CounterComments Counter = "comments_count"
	CounterShares   Counter = "shares_count"
	CounterViews    Counter = "views_count"
)

func (c Counter) valid() bool {
	switch c {
	case CounterLikes, CounterComments, CounterShares, CounterViews:
		return true
	}
	return false
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// ListScoringCandidates 返回 since 之后创建且未封禁的帖子，按创建时间倒序
	ListScoringCandidates(ctx context.Context, since time.Time) ([]*model.Post, error)
	UpdateScore(ctx context.Context, id string, score float64, trending bool) error
	Increment(ctx context.Context, id string, counter Counter, delta int64) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	SetBanned(ctx context.Context, id string, banned bool) error
	ListTrending(ctx context.Context, limit int) ([]*model.Post, error)
	ListByScore(ctx context.Context, offset, limit int) ([]*model.Post, error)
	SearchByTitle(ctx context.Context, query string, limit int) ([]*model.Post, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) ListScoringCandidates(ctx context.Context, since time.Time) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND banned = ?", since.UTC(), false).
		Order("created_at DESC, id").
		Find(&res).Error
	return res, err
}

func (r *postRepository) UpdateScore(ctx context.Context, id string, score float64, trending bool) error {
	// 只写派生列，不触碰 updated_at
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"engagement_score": score, "is_trending": trending}).Error
}

func (r *postRepository) Increment(ctx context.Context, id string, counter Counter, delta int64) error {
	if !counter.valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	q := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id)
	if delta < 0 {
		// 计数不为负
		q = q.Where(string(counter)+" >= ?", -delta)
	}
	res := q.UpdateColumn(string(counter), gorm.Expr(string(counter)+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if delta > 0 {
		return ErrNotFound
	}
	// 递减未命中：帖子不存在，或计数已为 0
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.setFlag(ctx, id, "is_pinned", pinned)
}

func (r *postRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return r.setFlag(ctx, id, "banned", banned)
}

func (r *postRepository) setFlag(ctx context.Context, id, column string, v bool) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Update(column, v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) ListTrending(ctx context.Context, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("is_trending = ? AND banned = ?", true, false).
		Order("engagement_score DESC, id").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *postRepository) ListByScore(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("banned = ?", false).
		Order("engagement_score DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *postRepository) SearchByTitle(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	var res []*model.Post
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("banned = ? AND LOWER(title) LIKE ?", false, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}

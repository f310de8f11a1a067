package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

const (
	trendingFeedKey   = "feed:trending"
	trendingFeedLimit = 100
)

// FeedService 热门与推荐列表读取
type FeedService interface {
	Trending(ctx context.Context, limit int) ([]*model.Post, error)
	ForYou(ctx context.Context, page, size int) ([]*model.Post, error)
	// Invalidate 热度重算后清掉热门缓存
	Invalidate(ctx context.Context) error
}

type feedService struct {
	posts repository.PostRepository
	cache *redis.Client
	ttl   time.Duration
}

// NewFeedService cache 为 nil 时直接读库
func NewFeedService(posts repository.PostRepository, cache *redis.Client, ttl time.Duration) FeedService {
	return &feedService{posts: posts, cache: cache, ttl: ttl}
}

func (s *feedService) Trending(ctx context.Context, limit int) ([]*model.Post, error) {
	if limit <= 0 || limit > trendingFeedLimit {
		limit = trendingFeedLimit
	}
	if s.cache == nil || s.ttl <= 0 {
		return s.posts.ListTrending(ctx, limit)
	}

	var all []*model.Post
	data, err := s.cache.Get(ctx, trendingFeedKey).Bytes()
	if err == nil && json.Unmarshal(data, &all) == nil {
		return head(all, limit), nil
	}
	if err != nil && err != redis.Nil {
		logger.Warn("trending feed cache read failed", zap.Error(err))
	}

	all, err = s.posts.ListTrending(ctx, trendingFeedLimit)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(all); err == nil {
		if err := s.cache.Set(ctx, trendingFeedKey, payload, s.ttl).Err(); err != nil {
			logger.Warn("trending feed cache write failed", zap.Error(err))
		}
	}
	return head(all, limit), nil
}

func (s *feedService) ForYou(ctx context.Context, page, size int) ([]*model.Post, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.posts.ListByScore(ctx, (page-1)*size, size)
}

func (s *feedService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, trendingFeedKey).Err()
}

func head(posts []*model.Post, n int) []*model.Post {
	if len(posts) > n {
		return posts[:n]
	}
	return posts
}

package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

// ModerationService 举报与封禁
type ModerationService interface {
	Report(ctx context.Context, reporterID, postID, reason string) error
	// SetPostBanned 封禁后帖子退出热度重算，热门缓存随之失效
	SetPostBanned(ctx context.Context, postID string, banned bool) error
}

type moderationService struct {
	posts        repository.PostRepository
	interactions repository.InteractionRepository
	limiter      RateLimiter
	feed         FeedService
	notifier     NotificationService
}

func NewModerationService(posts repository.PostRepository, interactions repository.InteractionRepository, limiter RateLimiter, feed FeedService, opts ...Option) ModerationService {
	o := buildOptions(opts)
	return &moderationService{posts: posts, interactions: interactions, limiter: limiter, feed: feed, notifier: o.notifier}
}

func (s *moderationService) Report(ctx context.Context, reporterID, postID, reason string) error {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return mapPostErr(err)
	}
	if err := guard(ctx, s.limiter, reporterID, model.ActionReport); err != nil {
		return err
	}
	err = s.interactions.CreateReport(ctx, postID, reporterID, reason)
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrAlreadyReported
	}
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, p.AuthorID, reporterID, p.ID, model.NotificationReport)
	}
	return nil
}

func (s *moderationService) SetPostBanned(ctx context.Context, postID string, banned bool) error {
	if err := s.posts.SetBanned(ctx, postID, banned); err != nil {
		return mapPostErr(err)
	}
	if s.feed != nil {
		if err := s.feed.Invalidate(ctx); err != nil {
			logger.Warn("invalidate trending feed failed", zap.String("post", postID), zap.Error(err))
		}
	}
	return nil
}

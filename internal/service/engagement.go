package service

import (
	"context"
	"errors"
	"strings"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
)

var ErrNotPostAuthor = errors.New("only the author can pin a post")

// EngagementService 用户对帖子的互动；热度分与热门标记不在这里写
type EngagementService interface {
	ToggleLike(ctx context.Context, userID, postID string) (liked bool, err error)
	Comment(ctx context.Context, userID, postID, body string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string, page, size int) ([]*model.Comment, error)
	Share(ctx context.Context, userID, postID string) error
	View(ctx context.Context, postID string) error
	// TogglePin 仅作者可操作；只有置顶受 pin 配额约束
	TogglePin(ctx context.Context, userID, postID string) (pinned bool, err error)
	Search(ctx context.Context, userID, query string, limit int) ([]*model.Post, error)
}

type engagementService struct {
	posts        repository.PostRepository
	interactions repository.InteractionRepository
	limiter      RateLimiter
	notifier     NotificationService
}

func NewEngagementService(posts repository.PostRepository, interactions repository.InteractionRepository, limiter RateLimiter, opts ...Option) EngagementService {
	o := buildOptions(opts)
	return &engagementService{posts: posts, interactions: interactions, limiter: limiter, notifier: o.notifier}
}

func (s *engagementService) notify(ctx context.Context, p *model.Post, actorID string, typ model.NotificationType) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, p.AuthorID, actorID, p.ID, typ)
	}
}

func (s *engagementService) visiblePost(ctx context.Context, postID string) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, mapPostErr(err)
	}
	if p.Banned {
		return nil, ErrPostNotFound
	}
	return p, nil
}

func (s *engagementService) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	p, err := s.visiblePost(ctx, postID)
	if err != nil {
		return false, err
	}
	if err := guard(ctx, s.limiter, userID, model.ActionLike); err != nil {
		return false, err
	}
	liked, err := s.interactions.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, mapPostErr(err)
	}
	if liked {
		s.notify(ctx, p, userID, model.NotificationLike)
	}
	return liked, nil
}

func (s *engagementService) Comment(ctx context.Context, userID, postID, body string) (*model.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyContent
	}
	p, err := s.visiblePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := guard(ctx, s.limiter, userID, model.ActionComment); err != nil {
		return nil, err
	}
	c := &model.Comment{PostID: postID, UserID: userID, Body: body}
	if err := s.interactions.CreateComment(ctx, c); err != nil {
		return nil, mapPostErr(err)
	}
	s.notify(ctx, p, userID, model.NotificationComment)
	return c, nil
}

func (s *engagementService) ListComments(ctx context.Context, postID string, page, size int) ([]*model.Comment, error) {
	if _, err := s.visiblePost(ctx, postID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.interactions.ListComments(ctx, postID, (page-1)*size, size)
}

func (s *engagementService) Share(ctx context.Context, userID, postID string) error {
	if _, err := s.visiblePost(ctx, postID); err != nil {
		return err
	}
	return mapPostErr(s.posts.Increment(ctx, postID, repository.CounterShares, 1))
}

func (s *engagementService) View(ctx context.Context, postID string) error {
	return mapPostErr(s.posts.Increment(ctx, postID, repository.CounterViews, 1))
}

func (s *engagementService) TogglePin(ctx context.Context, userID, postID string) (bool, error) {
	p, err := s.visiblePost(ctx, postID)
	if err != nil {
		return false, err
	}
	if p.AuthorID != userID {
		return false, ErrNotPostAuthor
	}
	pin := !p.IsPinned
	if pin {
		if err := guard(ctx, s.limiter, userID, model.ActionPin); err != nil {
			return false, err
		}
	}
	if err := s.posts.SetPinned(ctx, postID, pin); err != nil {
		return false, mapPostErr(err)
	}
	return pin, nil
}

func (s *engagementService) Search(ctx context.Context, userID, query string, limit int) ([]*model.Post, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyContent
	}
	if err := guard(ctx, s.limiter, userID, model.ActionSearch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.posts.SearchByTitle(ctx, query, limit)
}

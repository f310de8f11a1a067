package service

import (
	"context"
	"errors"
	"strings"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
)

// guard 执行限流检查：超额/参数错误向上返回，放行（含 fail-open）返回 nil
func guard(ctx context.Context, limiter RateLimiter, userID string, kind model.ActionKind) error {
	if limiter == nil {
		return nil
	}
	_, err := limiter.Check(ctx, userID, string(kind))
	return err
}

// Publisher 发帖（受 post 配额约束，管理员豁免）
type Publisher struct {
	posts   repository.PostRepository
	limiter RateLimiter
}

func NewPublisher(posts repository.PostRepository, limiter RateLimiter) *Publisher {
	return &Publisher{posts: posts, limiter: limiter}
}

// Publish 先过限流再落库
func (p *Publisher) Publish(ctx context.Context, authorID, title, payload string) (*model.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyContent
	}
	if err := guard(ctx, p.limiter, authorID, model.ActionPost); err != nil {
		return nil, err
	}
	post := &model.Post{AuthorID: authorID, Title: title, Payload: payload}
	if err := p.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func mapPostErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPostNotFound
	}
	return err
}

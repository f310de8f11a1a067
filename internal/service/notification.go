package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

var ErrNotificationNotFound = errors.New("notification not found")

var notificationMessages = map[model.NotificationType]string{
	model.NotificationLike:    "Someone liked your post",
	model.NotificationComment: "Someone commented on your post",
	model.NotificationReport:  "Your post was reported",
}

// NotificationPage 通知列表与未读数
type NotificationPage struct {
	Items       []*model.Notification `json:"items"`
	UnreadCount int64                 `json:"unread_count"`
}

// NotificationService 点赞、评论、举报时通知帖子作者
type NotificationService interface {
	// Notify 尽力而为：失败只记日志，不影响触发它的操作；不给自己发通知
	Notify(ctx context.Context, recipientID, actorID, postID string, typ model.NotificationType)
	List(ctx context.Context, userID string, limit int) (*NotificationPage, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) Notify(ctx context.Context, recipientID, actorID, postID string, typ model.NotificationType) {
	if recipientID == "" || recipientID == actorID {
		return
	}
	n := &model.Notification{
		UserID:  recipientID,
		ActorID: actorID,
		PostID:  postID,
		Type:    typ,
		Message: notificationMessages[typ],
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Warn("create notification failed",
			zap.String("user", recipientID), zap.String("type", string(typ)), zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userID string, limit int) (*NotificationPage, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	items, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &NotificationPage{Items: items, UnreadCount: unread}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

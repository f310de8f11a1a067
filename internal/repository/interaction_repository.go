package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement-service/internal/model"
)

// InteractionRepository 点赞、评论与举报
type InteractionRepository interface {
	// ToggleLike 已赞则取消，否则点赞；同一事务内维护 likes_count
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)
	// CreateComment 写入评论并在同一事务内维护 comments_count；帖子不存在返回 ErrNotFound
	CreateComment(ctx context.Context, c *model.Comment) error
	// ListComments 按时间正序
	ListComments(ctx context.Context, postID string, offset, limit int) ([]*model.Comment, error)
	// CreateReport 重复举报返回 ErrDuplicate
	CreateReport(ctx context.Context, postID, reporterID, reason string) error
}

type interactionRepository struct{ db *gorm.DB }

func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return tx.Model(&model.Post{}).
				Where("id = ? AND likes_count > 0", postID).
				UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
		}
		like := &model.Like{ID: uuid.New().String(), PostID: postID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
			return err
		}
		liked = true
		upd := tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return liked, err
}

func (r *interactionRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&model.Post{}).
			Where("id = ?", c.PostID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(c).Error
	})
}

func (r *interactionRepository) ListComments(ctx context.Context, postID string, offset, limit int) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *interactionRepository) CreateReport(ctx context.Context, postID, reporterID, reason string) error {
	rep := &model.Report{ID: uuid.New().String(), PostID: postID, ReporterID: reporterID, Reason: reason}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rep)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

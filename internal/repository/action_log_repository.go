package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement-service/internal/model"
)

// ActionLogRepository 限流计数存储（滑动窗口）
type ActionLogRepository interface {
	// CountSince 统计 created_at 严格晚于 since 的记录数
	CountSince(ctx context.Context, userID string, action model.ActionKind, since time.Time) (int64, error)
	Create(ctx context.Context, log *model.ActionLog) error
	// PurgeBefore 删除指定行为中早于 cutoff 的记录，返回删除数
	PurgeBefore(ctx context.Context, cutoff time.Time, actions []model.ActionKind) (int64, error)
}

// ActionLogReserver 可选能力：在存储层原子完成"计数 + 写入"
type ActionLogReserver interface {
	// Reserve 当窗口内计数 < limit 时写入 log 并返回 reserved=true；count 为写入前的计数
	Reserve(ctx context.Context, log *model.ActionLog, since time.Time, limit int) (count int64, reserved bool, err error)
}

type actionLogRepository struct{ db *gorm.DB }

func NewActionLogRepository(db *gorm.DB) ActionLogRepository { return &actionLogRepository{db: db} }

func (r *actionLogRepository) CountSince(ctx context.Context, userID string, action model.ActionKind, since time.Time) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.ActionLog{}).
		Where("user_id = ? AND action = ? AND created_at > ?", userID, action, since.UTC()).
		Count(&cnt).Error
	return cnt, err
}

func (r *actionLogRepository) Create(ctx context.Context, log *model.ActionLog) error {
	log.CreatedAt = log.CreatedAt.UTC()
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *actionLogRepository) PurgeBefore(ctx context.Context, cutoff time.Time, actions []model.ActionKind) (int64, error) {
	if len(actions) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("action IN ? AND created_at < ?", actions, cutoff.UTC()).
		Delete(&model.ActionLog{})
	return res.RowsAffected, res.Error
}

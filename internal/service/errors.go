package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/d60-Lab/engagement-service/internal/model"
)

var (
	ErrInvalidRequest     = errors.New("subject id and action kind required")
	ErrInvalidActionKind  = errors.New("invalid action kind")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPostNotFound       = errors.New("post not found")
	ErrAlreadyReported    = errors.New("post already reported by this user")
	ErrEmptyContent       = errors.New("content required")
)

// RateLimitError 配额耗尽，携带重试建议
type RateLimitError struct {
	Action  model.ActionKind
	Limit   int
	Window  time.Duration
	Message string
}

func (e *RateLimitError) Error() string { return e.Message }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// RetryAfter 建议的重试间隔（秒），等于策略窗口长度
func (e *RateLimitError) RetryAfter() int { return int(e.Window / time.Second) }

// PartialBatchError 批处理中部分条目失败；未失败的条目已生效
type PartialBatchError struct {
	Processed int
	Failed    int
	Total     int
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("partial batch failure: %d/%d processed, %d failed: %v", e.Processed, e.Total, e.Failed, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

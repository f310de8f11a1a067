package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

const failOpenMessage = "Rate limit check temporarily unavailable, action allowed"

var tracer = otel.Tracer("github.com/d60-Lab/engagement-service/internal/service")

// Decision 一次限流判定的结果
type Decision struct {
	Allowed    bool             `json:"allowed"`
	Action     model.ActionKind `json:"-"`
	Limit      int              `json:"limit"`
	Remaining  int              `json:"remaining"`
	RetryAfter int              `json:"retry_after"`
	Message    string           `json:"message,omitempty"`
	FailOpen   bool             `json:"-"`
	Bypassed   bool             `json:"-"`
}

// RateLimiterStats 计数器快照
type RateLimiterStats struct {
	Allowed          uint64 `json:"allowed"`
	Denied           uint64 `json:"denied"`
	Bypassed         uint64 `json:"bypassed"`
	FailOpen         uint64 `json:"fail_open"`
	LogWriteFailures uint64 `json:"log_write_failures"`
}

// RateLimiter 滑动窗口限流
type RateLimiter interface {
	// Check 判定 subject 能否执行 actionKind；放行时记录一条日志。
	// 超额时返回 Allowed=false 的 Decision 和 *RateLimitError。
	Check(ctx context.Context, subjectID, actionKind string) (*Decision, error)
	Policies() *PolicyTable
	Stats() RateLimiterStats
}

type rateLimiter struct {
	policies *PolicyTable
	logs     repository.ActionLogRepository
	users    repository.UserRepository
	roles    gcache.Cache
	purger   *Purger
	strict   bool
	now      func() time.Time

	allowed          atomic.Uint64
	denied           atomic.Uint64
	bypassed         atomic.Uint64
	failOpen         atomic.Uint64
	logWriteFailures atomic.Uint64
}

func NewRateLimiter(policies *PolicyTable, logs repository.ActionLogRepository, users repository.UserRepository, opts ...Option) RateLimiter {
	o := buildOptions(opts)
	l := &rateLimiter{
		policies: policies,
		logs:     logs,
		users:    users,
		purger:   o.purger,
		strict:   o.strict,
		now:      o.now,
	}
	if o.roleCacheTTL > 0 && o.roleCacheSize > 0 {
		l.roles = gcache.New(o.roleCacheSize).LRU().Expiration(o.roleCacheTTL).Build()
	}
	return l
}

func (l *rateLimiter) Policies() *PolicyTable { return l.policies }

func (l *rateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		Allowed:          l.allowed.Load(),
		Denied:           l.denied.Load(),
		Bypassed:         l.bypassed.Load(),
		FailOpen:         l.failOpen.Load(),
		LogWriteFailures: l.logWriteFailures.Load(),
	}
}

func (l *rateLimiter) Check(ctx context.Context, subjectID, actionKind string) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "RateLimiter.Check")
	defer span.End()
	span.SetAttributes(attribute.String("rate_limit.action", actionKind))

	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || actionKind == "" {
		return nil, ErrInvalidRequest
	}
	kind := model.ActionKind(actionKind)
	policy, ok := l.policies.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidActionKind, actionKind)
	}

	role, err := l.role(ctx, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}
	if err != nil {
		return l.openOnError(ctx, kind, policy, "role lookup", err), nil
	}

	if l.policies.Bypasses(role, kind) {
		l.bypassed.Add(1)
		span.SetAttributes(attribute.Bool("rate_limit.bypassed", true))
		return &Decision{Allowed: true, Action: kind, Limit: policy.Limit, Remaining: policy.Limit, Bypassed: true}, nil
	}

	now := l.now()
	since := now.Add(-policy.Window)
	entry := &model.ActionLog{ID: newActionLogID(now), UserID: subjectID, Action: kind, CreatedAt: now}

	var count int64
	if reserver, ok := l.logs.(repository.ActionLogReserver); ok && l.strict {
		var reserved bool
		count, reserved, err = reserver.Reserve(ctx, entry, since, policy.Limit)
		if err != nil {
			return l.openOnError(ctx, kind, policy, "reserve", err), nil
		}
		if !reserved {
			return l.deny(kind, policy)
		}
	} else {
		count, err = l.logs.CountSince(ctx, subjectID, kind, since)
		if err != nil {
			return l.openOnError(ctx, kind, policy, "count", err), nil
		}
		if count >= int64(policy.Limit) {
			return l.deny(kind, policy)
		}
		if err := l.logs.Create(ctx, entry); err != nil {
			// 已放行的判定不回退
			l.logWriteFailures.Add(1)
			logger.Warn("rate limit log write failed",
				zap.String("subject", subjectID),
				zap.String("action", actionKind),
				zap.Error(err))
		}
	}

	l.allowed.Add(1)
	if l.purger != nil {
		l.purger.Trigger()
	}
	remaining := policy.Limit - int(count) - 1
	span.SetAttributes(attribute.Int("rate_limit.remaining", remaining))
	return &Decision{Allowed: true, Action: kind, Limit: policy.Limit, Remaining: remaining}, nil
}

func (l *rateLimiter) deny(kind model.ActionKind, policy Policy) (*Decision, error) {
	l.denied.Add(1)
	rlErr := &RateLimitError{Action: kind, Limit: policy.Limit, Window: policy.Window, Message: policy.Message(kind)}
	return &Decision{
		Allowed:    false,
		Action:     kind,
		Limit:      policy.Limit,
		Remaining:  0,
		RetryAfter: rlErr.RetryAfter(),
		Message:    rlErr.Message,
	}, rlErr
}

func (l *rateLimiter) openOnError(ctx context.Context, kind model.ActionKind, policy Policy, stage string, err error) *Decision {
	l.failOpen.Add(1)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	logger.Error("rate limit check failed open",
		zap.String("stage", stage),
		zap.String("action", string(kind)),
		zap.Error(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)))
	return &Decision{Allowed: true, Action: kind, Limit: policy.Limit, Message: failOpenMessage, FailOpen: true}
}

func (l *rateLimiter) role(ctx context.Context, subjectID string) (model.Role, error) {
	if l.roles != nil {
		if v, err := l.roles.Get(subjectID); err == nil {
			return v.(model.Role), nil
		}
	}
	u, err := l.users.GetByID(ctx, subjectID)
	if err != nil {
		return "", err
	}
	if l.roles != nil {
		_ = l.roles.Set(subjectID, u.Role)
	}
	return u.Role, nil
}

// newActionLogID 以行为发生时间生成可排序的 ksuid
func newActionLogID(at time.Time) string {
	id, err := ksuid.NewRandomWithTime(at)
	if err != nil {
		return ksuid.New().String()
	}
	return id.String()
}

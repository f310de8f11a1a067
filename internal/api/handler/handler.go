package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement-service/internal/service"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

// Handler 聚合所有 HTTP 处理函数依赖
type Handler struct {
	limiter    service.RateLimiter
	purger     *service.Purger
	scheduler  *service.TrendingScheduler
	feed       service.FeedService
	publisher  *service.Publisher
	engagement service.EngagementService
	moderation service.ModerationService
	notifier   service.NotificationService
	signup     *service.SignupGate
	ping       func(context.Context) error
}

// Deps 构造 Handler 所需的服务
type Deps struct {
	Limiter    service.RateLimiter
	Purger     *service.Purger
	Scheduler  *service.TrendingScheduler
	Feed       service.FeedService
	Publisher  *service.Publisher
	Engagement service.EngagementService
	Moderation service.ModerationService
	Notifier   service.NotificationService
	Signup     *service.SignupGate
	// Ping 健康检查时探测存储，可为空
	Ping func(context.Context) error
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		limiter:    d.Limiter,
		purger:     d.Purger,
		scheduler:  d.Scheduler,
		feed:       d.Feed,
		publisher:  d.Publisher,
		engagement: d.Engagement,
		moderation: d.Moderation,
		notifier:   d.Notifier,
		signup:     d.Signup,
		ping:       d.Ping,
	}
}

// writeError 把服务层错误映射为统一响应
func writeError(c *gin.Context, err error) {
	var rlErr *service.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		c.Header("Retry-After", fmt.Sprintf("%d", rlErr.RetryAfter()))
		response.TooManyRequests(c, rlErr.Message, gin.H{"retry_after": rlErr.RetryAfter(), "limit": rlErr.Limit})
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrSubjectNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotPostAuthor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrAlreadyReported):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrInvalidActionKind),
		errors.Is(err, service.ErrInvalidRequest):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// Healthz 存活探针
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/service"
	"github.com/d60-Lab/engagement-service/pkg/logger"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

type checkRateLimitRequest struct {
	SubjectID  string `json:"subject_id"`
	ActionKind string `json:"action_kind"`
}

type checkRateLimitAllowed struct {
	Allowed    bool `json:"allowed"`
	Limit      int  `json:"limit"`
	Remaining  int  `json:"remaining"`
	RetryAfter int  `json:"retry_after"`
}

type checkRateLimitDenied struct {
	Allowed    bool   `json:"allowed"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

type checkRateLimitFailOpen struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
}

type checkRateLimitError struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error"`
}

// CheckRateLimit 判定某用户能否执行某行为
// @Summary 限流判定
// @Tags 限流
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "服务密钥"
// @Param request body checkRateLimitRequest true "用户与行为"
// @Success 200 {object} checkRateLimitAllowed
// @Failure 400 {object} checkRateLimitError
// @Failure 404 {object} checkRateLimitError
// @Failure 429 {object} checkRateLimitDenied
// @Router /api/v1/rate-limit/check [post]
func (h *Handler) CheckRateLimit(c *gin.Context) {
	var req checkRateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, checkRateLimitError{Error: "invalid request body"})
		return
	}

	d, err := h.limiter.Check(c.Request.Context(), req.SubjectID, req.ActionKind)
	var rlErr *service.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		c.Header("Retry-After", fmt.Sprintf("%d", d.RetryAfter))
		c.JSON(http.StatusTooManyRequests, checkRateLimitDenied{
			Message: d.Message, RetryAfter: d.RetryAfter, Limit: d.Limit,
		})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, checkRateLimitError{Error: "subject_id and action_kind required"})
	case errors.Is(err, service.ErrInvalidActionKind):
		c.JSON(http.StatusBadRequest, checkRateLimitError{Error: "Invalid action type"})
	case errors.Is(err, service.ErrSubjectNotFound):
		c.JSON(http.StatusNotFound, checkRateLimitError{Error: "Subject not found"})
	case err != nil:
		// Check 自身已吞掉基础设施错误，走到这里属于意外
		logger.Error("rate limit check unexpected error", zap.Error(err))
		c.JSON(http.StatusOK, checkRateLimitFailOpen{Allowed: true, Message: err.Error()})
	case d.FailOpen:
		c.JSON(http.StatusOK, checkRateLimitFailOpen{Allowed: true, Message: d.Message})
	default:
		c.JSON(http.StatusOK, checkRateLimitAllowed{Allowed: true, Limit: d.Limit, Remaining: d.Remaining})
	}
}

// RateLimitStats 限流计数
// @Summary 限流统计
// @Tags 内部
// @Produce json
// @Param X-Service-Key header string true "服务密钥"
// @Success 200 {object} response.Response{data=service.RateLimiterStats}
// @Router /api/v1/internal/stats [get]
func (h *Handler) RateLimitStats(c *gin.Context) {
	response.Success(c, h.limiter.Stats())
}

// PurgeActionLogs 立即清理过期限流日志
// @Summary 清理限流日志
// @Tags 内部
// @Produce json
// @Param X-Service-Key header string true "服务密钥"
// @Success 200 {object} response.Response{data=map[string]int64}
// @Failure 500 {object} response.Response
// @Router /api/v1/internal/action-logs/purge [post]
func (h *Handler) PurgeActionLogs(c *gin.Context) {
	n, err := h.purger.PurgeOnce(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

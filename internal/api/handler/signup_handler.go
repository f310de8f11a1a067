package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/service"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

type verifyEmailRequest struct {
	Email  string `json:"email"`
	Action string `json:"action"`
}

type verifyEmailError struct {
	Error   string `json:"error"`
	Allowed bool   `json:"allowed"`
}

// VerifyEmail 注册前邮箱准入检查
// @Summary 注册邮箱检查
// @Tags 注册
// @Accept json
// @Produce json
// @Param request body verifyEmailRequest true "邮箱与动作（signup / resend_verification）"
// @Success 200 {object} service.SignupVerdict
// @Failure 400 {object} verifyEmailError
// @Failure 403 {object} verifyEmailError
// @Failure 409 {object} verifyEmailError
// @Failure 429 {object} verifyEmailError
// @Router /api/v1/signup/verify-email [post]
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, verifyEmailError{Error: "Email and action required"})
		return
	}
	verdict, err := h.signup.Check(c.Request.Context(), req.Email, req.Action)
	if err == nil {
		c.JSON(http.StatusOK, verdict)
		return
	}

	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, service.ErrSignupInvalid):
		status, msg = http.StatusBadRequest, "Email and action required"
	case errors.Is(err, service.ErrDomainNotAllowed):
		status, msg = http.StatusForbidden, "Email domain is not allowed"
	case errors.Is(err, service.ErrDisposableEmail):
		status, msg = http.StatusForbidden, "Disposable email addresses are not allowed"
	case errors.Is(err, service.ErrEmailRegistered):
		status, msg = http.StatusConflict, "Email already registered and verified"
	case errors.Is(err, service.ErrTooManySignups):
		status, msg = http.StatusTooManyRequests, "Too many signup attempts. Please try again later."
	default:
		logger.Error("verify email failed", zap.Error(err))
	}
	c.JSON(status, verifyEmailError{Error: msg})
}

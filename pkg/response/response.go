package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func write(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Response{Code: status, Message: msg, Data: data})
}

// Success 200
func Success(c *gin.Context, data any) {
	write(c, http.StatusOK, "success", data)
}

// Created 201
func Created(c *gin.Context, data any) {
	write(c, http.StatusCreated, "created", data)
}

// BadRequest 400
func BadRequest(c *gin.Context, msg string) {
	write(c, http.StatusBadRequest, msg, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, msg string) {
	write(c, http.StatusUnauthorized, msg, nil)
}

// Forbidden 403
func Forbidden(c *gin.Context, msg string) {
	write(c, http.StatusForbidden, msg, nil)
}

// NotFound 404
func NotFound(c *gin.Context, msg string) {
	write(c, http.StatusNotFound, msg, nil)
}

// Conflict 409
func Conflict(c *gin.Context, msg string) {
	write(c, http.StatusConflict, msg, nil)
}

// TooManyRequests 429，data 中带上重试建议
func TooManyRequests(c *gin.Context, msg string, data any) {
	write(c, http.StatusTooManyRequests, msg, data)
}

// InternalError 500，错误细节只写日志不返回给调用方
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	write(c, http.StatusInternalServerError, "internal server error", nil)
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement-service/internal/api/middleware"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

// ListNotifications 当前用户的通知
// @Summary 通知列表与未读数
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量" default(50)
// @Success 200 {object} response.Response{data=service.NotificationPage}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, err := h.notifier.List(c.Request.Context(), middleware.CurrentUserID(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, page)
}

// MarkNotificationRead 标记单条已读
// @Summary 标记已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.notifier.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllNotificationsRead 全部标记已读
// @Summary 全部已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifier.MarkAllRead(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

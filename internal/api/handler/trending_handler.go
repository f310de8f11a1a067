package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement-service/internal/service"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

type trendingRunResponse struct {
	Message        string `json:"message"`
	TrendingCount  int    `json:"trending_count"`
	TotalProcessed int    `json:"total_processed"`
	Failed         int    `json:"failed,omitempty"`
	Total          int    `json:"total,omitempty"`
}

// RunTrending 立即重算热度分
// @Summary 重算热门帖子
// @Tags 内部
// @Produce json
// @Param X-Service-Key header string true "服务密钥"
// @Success 200 {object} trendingRunResponse
// @Failure 500 {object} map[string]string
// @Router /api/v1/internal/trending/run [post]
func (h *Handler) RunTrending(c *gin.Context) {
	res, err := h.scheduler.RunOnce(c.Request.Context())
	var partial *service.PartialBatchError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusOK, trendingRunResponse{
			Message:        "Trending posts partially updated",
			TrendingCount:  res.TrendingCount,
			TotalProcessed: res.Processed,
			Failed:         res.Failed,
			Total:          res.Total,
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update trending posts"})
	case res.Total == 0:
		c.JSON(http.StatusOK, trendingRunResponse{Message: "No posts to update"})
	default:
		c.JSON(http.StatusOK, trendingRunResponse{
			Message:        "Trending posts updated successfully",
			TrendingCount:  res.TrendingCount,
			TotalProcessed: res.Processed,
		})
	}
}

// TrendingFeed 热门帖子
// @Summary 热门帖子
// @Tags 帖子
// @Produce json
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]model.Post}
// @Router /api/v1/posts/trending [get]
func (h *Handler) TrendingFeed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	posts, err := h.feed.Trending(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, posts)
}

// ForYou 按热度分排序的推荐流
// @Summary 推荐帖子
// @Tags 帖子
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/posts/for-you [get]
func (h *Handler) ForYou(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	posts, err := h.feed.ForYou(c.Request.Context(), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": posts})
}

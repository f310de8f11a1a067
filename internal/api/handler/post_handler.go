package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement-service/internal/api/middleware"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

type createPostRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Payload string `json:"payload" binding:"max=10000"`
}

type commentRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

type reportRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type banRequest struct {
	Banned *bool `json:"banned" binding:"required"`
}

// CreatePost 发帖
// @Summary 发帖（受 post 配额约束）
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "帖子内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.publisher.Publish(c.Request.Context(), middleware.CurrentUserID(c), req.Title, req.Payload)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, post)
}

// LikePost 点赞/取消点赞
// @Summary 点赞切换
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Failure 404 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	liked, err := h.engagement.ToggleLike(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"liked": liked})
}

// CommentPost 评论
// @Summary 评论
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=model.Comment}
// @Failure 429 {object} response.Response
// @Router /api/v1/posts/{id}/comment [post]
func (h *Handler) CommentPost(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.engagement.Comment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, comment)
}

// ListComments 评论列表
// @Summary 评论列表（按时间正序）
// @Tags 互动
// @Produce json
// @Param id path string true "帖子ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	comments, err := h.engagement.ListComments(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, comments)
}

// SharePost 分享
// @Summary 分享
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /api/v1/posts/{id}/share [post]
func (h *Handler) SharePost(c *gin.Context) {
	if err := h.engagement.Share(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// ViewPost 浏览计数
// @Summary 浏览
// @Tags 互动
// @Produce json
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /api/v1/posts/{id}/view [post]
func (h *Handler) ViewPost(c *gin.Context) {
	if err := h.engagement.View(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// PinPost 置顶/取消置顶
// @Summary 置顶切换（仅作者）
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Failure 403 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/posts/{id}/pin [post]
func (h *Handler) PinPost(c *gin.Context) {
	pinned, err := h.engagement.TogglePin(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"pinned": pinned})
}

// ReportPost 举报
// @Summary 举报
// @Tags 审核
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body reportRequest false "举报原因"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/posts/{id}/report [post]
func (h *Handler) ReportPost(c *gin.Context) {
	var req reportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if err := h.moderation.Report(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// SearchPosts 按标题搜索
// @Summary 搜索帖子（受 search 配额约束）
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param q query string true "关键词"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=[]model.Post}
// @Failure 429 {object} response.Response
// @Router /api/v1/posts/search [get]
func (h *Handler) SearchPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	posts, err := h.engagement.Search(c.Request.Context(), middleware.CurrentUserID(c), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, posts)
}

// BanPost 封禁/解封
// @Summary 封禁帖子（管理员）
// @Tags 审核
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body banRequest true "是否封禁"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/posts/{id}/ban [post]
func (h *Handler) BanPost(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.moderation.SetPostBanned(c.Request.Context(), c.Param("id"), *req.Banned); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"banned": *req.Banned})
}

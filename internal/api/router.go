package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/engagement-service/config"
	_ "github.com/d60-Lab/engagement-service/docs"
	"github.com/d60-Lab/engagement-service/internal/api/handler"
	"github.com/d60-Lab/engagement-service/internal/api/middleware"
)

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.Sentry(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.AccessLog(),
	)
	// 按 IP 限流只作用于终端用户路由，服务密钥路由不经过它
	throttle := middleware.IPRateLimit(cfg.Server.IPRate, cfg.Server.IPBurst)

	r.GET("/healthz", h.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	internal := v1.Group("", middleware.ServiceKey(cfg.Server.ServiceKeyHash))
	internal.POST("/rate-limit/check", h.CheckRateLimit)
	internal.POST("/internal/trending/run", h.RunTrending)
	internal.POST("/internal/action-logs/purge", h.PurgeActionLogs)
	internal.GET("/internal/stats", h.RateLimitStats)

	v1.POST("/signup/verify-email", throttle, h.VerifyEmail)

	posts := v1.Group("/posts", throttle)
	posts.GET("/trending", h.TrendingFeed)
	posts.GET("/for-you", h.ForYou)
	posts.GET("/:id/comments", h.ListComments)
	posts.POST("/:id/view", h.ViewPost)

	authed := posts.Group("", middleware.JWTAuth(cfg.Server.JWTSecret))
	authed.GET("/search", h.SearchPosts)
	authed.POST("", h.CreatePost)
	authed.POST("/:id/like", h.LikePost)
	authed.POST("/:id/comment", h.CommentPost)
	authed.POST("/:id/share", h.SharePost)
	authed.POST("/:id/pin", h.PinPost)
	authed.POST("/:id/report", h.ReportPost)

	me := v1.Group("/notifications", throttle, middleware.JWTAuth(cfg.Server.JWTSecret))
	me.GET("", h.ListNotifications)
	me.POST("/:id/read", h.MarkNotificationRead)
	me.POST("/read-all", h.MarkAllNotificationsRead)

	admin := v1.Group("/admin", throttle, middleware.JWTAuth(cfg.Server.JWTSecret), middleware.RequireAdmin())
	admin.POST("/posts/:id/ban", h.BanPost)

	return r
}

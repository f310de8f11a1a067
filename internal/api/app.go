package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/api/handler"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/internal/service"
)

// App 按配置装配好的服务与路由
type App struct {
	Limiter   service.RateLimiter
	Purger    *service.Purger
	Scorer    service.TrendingScorer
	Scheduler *service.TrendingScheduler
	Feed      service.FeedService
	Router    *gin.Engine
}

// NewApp rdb 为 nil 时限流日志与热门缓存都退回数据库
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	rl := cfg.RateLimit
	policies := service.PolicyTableFromConfig(rl)

	var logs repository.ActionLogRepository = repository.NewActionLogRepository(db)
	if rl.Store == "redis" && rdb != nil {
		logs = repository.NewRedisActionLogRepository(rdb, repository.WithKeyTTL(func(kind model.ActionKind) time.Duration {
			return policies.RetentionFor(kind, rl.Retention)
		}))
	}
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	interactions := repository.NewInteractionRepository(db)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db))

	purger := service.NewPurger(logs, policies, rl.Retention, rl.PurgeInterval, rl.PurgeMinGap)
	limiter := service.NewRateLimiter(policies, logs, users,
		service.WithPurger(purger),
		service.WithStrict(rl.Strict),
		service.WithRoleCache(rl.RoleCacheSize, rl.RoleCacheTTL),
	)
	feed := service.NewFeedService(posts, rdb, cfg.Trending.FeedCacheTTL)
	scorer := service.NewTrendingScorer(posts, service.TrendingParamsFromConfig(cfg.Trending))
	scheduler := service.NewTrendingScheduler(scorer, feed, cfg.Trending.Interval, cfg.Trending.RunTimeout)

	h := handler.NewHandler(handler.Deps{
		Limiter:    limiter,
		Purger:     purger,
		Scheduler:  scheduler,
		Feed:       feed,
		Publisher:  service.NewPublisher(posts, limiter),
		Engagement: service.NewEngagementService(posts, interactions, limiter, service.WithNotifier(notifier)),
		Moderation: service.NewModerationService(posts, interactions, limiter, feed, service.WithNotifier(notifier)),
		Notifier:   notifier,
		Signup:     service.NewSignupGate(users, cfg.Signup),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	return &App{
		Limiter:   limiter,
		Purger:    purger,
		Scorer:    scorer,
		Scheduler: scheduler,
		Feed:      feed,
		Router:    NewRouter(cfg, h),
	}
}

// Start 启动后台任务（清理与热度重算）；返回停止函数
func (a *App) Start(trending bool) func(context.Context) error {
	stops := []func(context.Context) error{a.Purger.Start()}
	if trending {
		stops = append(stops, a.Scheduler.Start())
	}
	return func(ctx context.Context) error {
		var firstErr error
		for _, stop := range stops {
			if err := stop(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

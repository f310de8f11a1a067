package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/pkg/logger"
)

// TrendingScheduler 按固定间隔触发热度重算；与手动触发的重算可能重叠，重算本身幂等
type TrendingScheduler struct {
	scorer   TrendingScorer
	feed     FeedService
	interval time.Duration
	timeout  time.Duration
}

func NewTrendingScheduler(scorer TrendingScorer, feed FeedService, interval, timeout time.Duration) *TrendingScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TrendingScheduler{scorer: scorer, feed: feed, interval: interval, timeout: timeout}
}

// Start 启动轮询；返回停止函数
func (s *TrendingScheduler) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = s.RunOnce(context.Background())
			}
		}
	}()
	return func(ctx context.Context) error {
		close(stop)
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce 执行一次重算；只要有分数写入就让热门缓存失效
func (s *TrendingScheduler) RunOnce(ctx context.Context) (*TrendingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.scorer.Run(ctx)
	var partial *PartialBatchError
	switch {
	case err == nil:
		logger.Info("trending run finished",
			zap.Int("total", res.Total),
			zap.Int("trending", res.TrendingCount),
			zap.Duration("took", time.Since(start)))
	case errors.As(err, &partial):
		// 已在 scorer 中记录
	default:
		logger.Error("trending run failed", zap.Error(err))
		return nil, err
	}

	if s.feed != nil && res != nil && res.Processed > 0 {
		if ierr := s.feed.Invalidate(ctx); ierr != nil {
			logger.Warn("invalidate trending feed failed", zap.Error(ierr))
		}
	}
	return res, err
}

package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

// Purger 后台清理过期的限流日志，与判定路径解耦
type Purger struct {
	logs      repository.ActionLogRepository
	policies  *PolicyTable
	retention time.Duration
	interval  time.Duration
	minGap    time.Duration
	now       func() time.Time

	ch chan struct{}

	mu      sync.Mutex
	lastRun time.Time
	runs    int
}

func NewPurger(logs repository.ActionLogRepository, policies *PolicyTable, retention, interval, minGap time.Duration, opts ...Option) *Purger {
	o := buildOptions(opts)
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Purger{
		logs:      logs,
		policies:  policies,
		retention: retention,
		interval:  interval,
		minGap:    minGap,
		now:       o.now,
		ch:        make(chan struct{}, 1),
	}
}

// Trigger 请求一次清理；已有待处理请求时直接丢弃，从不阻塞
func (p *Purger) Trigger() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}

// Start 启动后台循环：处理 Trigger 请求并按 interval 定期全量清理；返回停止函数
func (p *Purger) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-p.ch:
				if p.due() {
					p.runLogged("trigger")
				}
			case <-ticker.C:
				p.runLogged("sweep")
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

// due 距上次清理不足 minGap 时跳过
func (p *Purger) due() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun.IsZero() || p.now().Sub(p.lastRun) >= p.minGap
}

func (p *Purger) runLogged(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := p.PurgeOnce(ctx)
	if err != nil {
		logger.Warn("action log purge failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Debug("action log purged", zap.String("reason", reason), zap.Int64("deleted", n))
	}
}

// PurgeOnce 删除保留期之外的日志。保留期取 retention 与各行为窗口中的较大者，
// 因此 30 天窗口的 pin 日志不会被 24h 的清理提前删掉。
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	now := p.now()
	byCutoff := make(map[time.Duration][]model.ActionKind)
	for _, kind := range p.policies.Kinds() {
		keep := p.policies.RetentionFor(kind, p.retention)
		byCutoff[keep] = append(byCutoff[keep], kind)
	}

	var total int64
	for keep, kinds := range byCutoff {
		n, err := p.logs.PurgeBefore(ctx, now.Add(-keep), kinds)
		total += n
		if err != nil {
			return total, err
		}
	}

	p.mu.Lock()
	p.lastRun = now
	p.runs++
	p.mu.Unlock()
	return total, nil
}

// Runs 已完成的清理次数（采样值）
func (p *Purger) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// KeyTTL Redis 存储中每个行为 key 的过期时间
func (p *Purger) KeyTTL(kind model.ActionKind) time.Duration {
	return p.policies.RetentionFor(kind, p.retention)
}

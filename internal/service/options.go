package service

import (
	"time"
)

type options struct {
	now           func() time.Time
	purger        *Purger
	strict        bool
	roleCacheSize int
	roleCacheTTL  time.Duration
	notifier      NotificationService
}

// Option 各服务共用的可选项，不相关的字段会被忽略
type Option func(*options)

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPurger 放行后通知清理器
func WithPurger(p *Purger) Option {
	return func(o *options) { o.purger = p }
}

// WithStrict 存储支持时使用原子的 计数+写入
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithRoleCache ttl<=0 时不缓存
func WithRoleCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.roleCacheSize = size
		o.roleCacheTTL = ttl
	}
}

// WithNotifier 互动发生时通知帖子作者
func WithNotifier(n NotificationService) Option {
	return func(o *options) { o.notifier = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, roleCacheSize: 10000, roleCacheTTL: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

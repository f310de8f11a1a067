package middleware

import (
	"fmt"
	"math"
	"time"

	"github.com/bluele/gcache"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/engagement-service/pkg/logger"
	"github.com/d60-Lab/engagement-service/pkg/response"
)

// IPRateLimit 每个客户端 IP 一个令牌桶；空闲 10 分钟后回收
func IPRateLimit(rps float64, burst int) gin.HandlerFunc {
	limiters := gcache.New(100000).LRU().Expiration(10 * time.Minute).
		LoaderFunc(func(any) (any, error) {
			return rate.NewLimiter(rate.Limit(rps), burst), nil
		}).
		Build()
	return func(c *gin.Context) {
		ip := c.ClientIP()
		v, err := limiters.Get(ip)
		if err != nil {
			c.Next()
			return
		}
		limiter := v.(*rate.Limiter)

		reservation := limiter.Reserve()
		if !reservation.OK() {
			tooMany(c, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			logger.Debug("ip rate limit exceeded", zap.String("ip", ip), zap.Duration("delay", delay))
			tooMany(c, delay)
			return
		}
		c.Next()
	}
}

func tooMany(c *gin.Context, wait time.Duration) {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", fmt.Sprintf("%d", secs))
	response.TooManyRequests(c, "too many requests", gin.H{"retry_after": secs})
	c.Abort()
}

package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bluele/gcache"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/engagement-service/pkg/response"
)

const ServiceKeyHeader = "X-Service-Key"

// ServiceKey 内部接口鉴权：X-Service-Key 与配置中的 bcrypt 哈希比对。
// 校验通过的 key 以摘要形式缓存，避免每次请求都跑 bcrypt。
func ServiceKey(hash string) gin.HandlerFunc {
	verified := gcache.New(16).LRU().Expiration(10 * time.Minute).Build()
	return func(c *gin.Context) {
		key := c.GetHeader(ServiceKeyHeader)
		if key == "" {
			response.Unauthorized(c, "missing service key")
			c.Abort()
			return
		}
		sum := sha256.Sum256([]byte(key))
		digest := hex.EncodeToString(sum[:])
		if _, err := verified.Get(digest); err != nil {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				response.Unauthorized(c, "invalid service key")
				c.Abort()
				return
			}
			_ = verified.Set(digest, struct{}{})
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
)

// RateLimit 基于客户端 IP 做固定窗口限流，计数存在 Redis。
// Redis 不可用时放行请求，限流失效好过接口整体不可用。
func RateLimit(stateRepo repository.StateRepository, limit int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RateLimit middleware")
	}
	if limit <= 0 {
		panic("limit must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 以客户端 IP 作为限流键，仓储层会补全完整的 Redis key 前缀
		key := c.ClientIP()

		exceeded, err := stateRepo.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logrus.WithError(err).Warn("Rate limit check failed, allowing request")
			c.Next()
			return
		}
		if exceeded {
			logrus.WithField("client_ip", c.ClientIP()).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

package handler

import (
	"log"
	"strconv"
	"time"

	"eventpay/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	ctxKeyActorID   = "actor_id"
	ctxKeyActorRole = "actor_role"

	roleAdmin = "admin"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// ActorMiddleware 操作者身份中间件
// 网关完成认证后透传 X-User-ID / X-User-Role，本服务只做解析不做鉴权
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetHeader(headerUserID)
		if userIDStr == "" {
			response.Unauthorized(c, "缺少用户身份")
			c.Abort()
			return
		}

		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil || userID <= 0 {
			response.Unauthorized(c, "用户身份不合法")
			c.Abort()
			return
		}

		c.Set(ctxKeyActorID, userID)
		c.Set(ctxKeyActorRole, c.GetHeader(headerUserRole))
		c.Next()
	}
}

// RequireRole 角色门槛
// 角色同样来自网关透传的 X-User-Role，用于管理接口
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxKeyActorRole) != role {
			response.Forbidden(c, "无权访问该接口")
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(ctxKeyActorID)
}

package handler

import (
	"eventpay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组，身份由网关透传
	api := r.Group("/api/v1")
	api.Use(ActorMiddleware())
	{
		// 钱包相关
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/recharge", h.Recharge)
			wallet.GET("/entries", h.ListEntries)
		}

		// 活动报名相关
		event := api.Group("/event")
		{
			event.POST("/join", h.Join)
			event.POST("/cancel", h.Cancel)
			event.POST("/decision", h.Decision)
			event.GET("/joins", h.ListEventJoins)
		}

		// 报名记录查询
		join := api.Group("/join")
		{
			join.GET("/detail", h.GetJoinDetail)
			join.GET("/list", h.ListJoins)
		}

		// 管理接口，要求网关透传的角色是管理员
		admin := api.Group("/admin")
		admin.Use(RequireRole(roleAdmin))
		{
			admin.POST("/wallet/status", h.SetWalletStatus)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

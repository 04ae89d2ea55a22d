package router

import (
	"net/http"

	_ "github.com/3Eeeecho/go-fileshare/docs"
	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/middlewares"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Handlers 路由需要的全部处理器
type Handlers struct {
	Auth  *handlers.AuthHandler
	User  *handlers.UserHandler
	File  *handlers.FileHandler
	Share *handlers.ShareHandler
}

func InitRouter(h Handlers, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(middlewares.ZapLogger(), gin.Recovery(), middlewares.Metrics())
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies", zap.Strings("proxies", cfg.Server.TrustedProxies), zap.Error(err))
	}

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
		}

		// 需要认证的路由组
		authenticated := v1.Group("/")
		authenticated.Use(middlewares.AuthMiddleware(&cfg.JWT))

		// 匿名可访问, 登录用户按所有者处理
		optional := v1.Group("/")
		optional.Use(middlewares.OptionalAuth(&cfg.JWT))

		authenticated.GET("/users/me", h.User.Me)

		// 文件相关路由
		fileGroup := authenticated.Group("/files")
		{
			fileGroup.POST("", h.File.Upload)
			fileGroup.GET("/stats", h.File.Stats)
			fileGroup.PATCH("/:id/metadata", h.File.UpdateMetadata)
			fileGroup.PATCH("/:id/visibility", h.File.UpdateVisibility)
			fileGroup.DELETE("/:id", h.File.Delete)
			fileGroup.GET("/:id/access-logs", h.File.ListAccessLogs)
			fileGroup.GET("/:id/failed-logs", h.File.ListFailedLogs)
			fileGroup.GET("/:id/shares", h.Share.ListShares)
		}
		publicFiles := optional.Group("/files")
		{
			publicFiles.GET("/:id/metadata", h.File.GetMetadata)
			publicFiles.GET("/:id/download", h.File.Download)
		}

		// 分享相关路由
		authenticated.POST("/shares", h.Share.CreateShare)
		shareGroup := optional.Group("/shares")
		{
			shareGroup.GET("/:token", h.Share.GetShare)
			shareGroup.POST("/:token/download", h.Share.Download)
			shareGroup.POST("/:token/preview", h.Share.Preview)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, xerr.NotFoundCode, "Route not found")
	})

	return router
}

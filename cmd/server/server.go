package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/notify"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/search"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/router"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fileshare/internal/services/preview"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/3Eeeecho/go-fileshare/internal/services/sweeper"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	sweeper     *sweeper.Sweeper
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接, 内部完成表结构迁移
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	ss, err := setup.InitStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 预览缓存: redis 多实例共享, memory 仅适用于单实例部署
	var (
		previewCache cache.PreviewCache
		redisClient  *redis.Client
	)
	switch cfg.Preview.Cache {
	case "redis":
		redisClient, err = setup.InitRedis(context.Background(), &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		previewCache, err = cache.NewRedisCache(redisClient, cfg.Preview.Compress)
		if err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to initialize preview cache: %w", err)
		}
	default:
		previewCache = cache.NewLRUCache(cfg.Preview.MaxEntries, cfg.Preview.TTL)
	}
	logger.Info("Preview cache initialized", zap.String("type", cfg.Preview.Cache))

	// 审计事件镜像到 Elasticsearch 是可选的
	var indexer audit.EventIndexer
	if cfg.Elasticsearch.Enabled {
		esClient, err := setup.InitElasticsearch(&cfg.Elasticsearch)
		if err != nil {
			logger.Warn("Elasticsearch unavailable, audit mirror disabled", zap.Error(err))
		} else {
			indexer = search.NewAuditIndexer(esClient, cfg.Elasticsearch.AuditIndex)
		}
	}

	notifier, err := notify.NewNotifier(&cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	//  初始化 Repositories
	fileRepo := repositories.NewFileRepository(mysqlDB)
	userRepo := repositories.NewUserRepository(mysqlDB)
	shareRepo := repositories.NewShareRepository(mysqlDB)
	logRepo := repositories.NewAccessLogRepository(mysqlDB)
	tm := explorer.NewTransactionManager(mysqlDB)

	//  初始化 Services
	auditService := audit.NewService(logRepo, fileRepo, indexer)
	authService := admin.NewAuthService(userRepo, &cfg.JWT)
	userService := admin.NewUserService(userRepo, fileRepo, shareRepo)
	fileService := explorer.NewFileService(fileRepo, logRepo, auditService, tm, ss)
	shareService := share.NewShareService(shareRepo, fileRepo, auditService, tm, ss, notifier, &cfg.Share)
	renderer := preview.NewRenderer(shareRepo, ss, previewCache, cfg.Preview.TTL)
	previewService := preview.NewPreviewService(shareService, renderer, auditService)

	// 过期文件清理任务
	sw := sweeper.NewSweeper(fileRepo, logRepo, tm, ss, cfg.Sweeper)
	if cfg.Sweeper.Enabled {
		if err := sw.Start(); err != nil {
			return nil, fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	// 初始化 Gin 引擎和注册路由
	engine := router.InitRouter(router.Handlers{
		Auth:  handlers.NewAuthHandler(authService),
		User:  handlers.NewUserHandler(userService),
		File:  handlers.NewFileHandler(fileService, auditService),
		Share: handlers.NewShareHandler(shareService, previewService),
	}, cfg)

	addr := ":" + cfg.Server.Port
	logger.Info(fmt.Sprintf("Server is running on %s", addr))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		router:      engine,
		httpServer:  httpServer,
		db:          mysqlDB,
		redisClient: redisClient,
		sweeper:     sw,
	}, nil
}

// Run 启动服务器, ctx 取消后优雅关机
func (s *Server) Run(ctx context.Context) {
	defer setup.CloseDB(s.db)
	if s.redisClient != nil {
		defer s.redisClient.Close()
	}

	// 启动 HTTP 服务器
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-ctx.Done()
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// 等待正在执行的清理任务结束
	if err := s.sweeper.Stop(shutdownCtx); err != nil {
		logger.Warn("Sweeper did not stop in time", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}

// SweepOnce 只连接数据库与存储, 执行一次过期文件清理
func SweepOnce(ctx context.Context, cfg *config.Config) (sweeper.Result, error) {
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return sweeper.Result{}, fmt.Errorf("failed to initialize MySQL: %w", err)
	}
	defer setup.CloseDB(mysqlDB)

	ss, err := setup.InitStorage(cfg)
	if err != nil {
		return sweeper.Result{}, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sw := sweeper.NewSweeper(
		repositories.NewFileRepository(mysqlDB),
		repositories.NewAccessLogRepository(mysqlDB),
		explorer.NewTransactionManager(mysqlDB),
		ss,
		cfg.Sweeper,
	)
	return sw.RunOnce(ctx), nil
}

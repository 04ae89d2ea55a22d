package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/3Eeeecho/go-fileshare/cmd/server"
	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

// @title go-fileshare API
// @version 1.0
// @description 文件访问控制与安全分享服务
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fileshare: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fileshare",
		Short:        "File sharing service with access control and share links",
		SilenceUsage: true,
		// 不带子命令时直接启动 HTTP 服务
		RunE: runServe,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default: search ./, ./configs, /etc/go-fileshare)")
	cmd.AddCommand(newServeCmd(), newSweepCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the expiry sweeper",
		RunE:  runServe,
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired files once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			res, err := server.SweepOnce(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d deleted=%d failed=%d\n", res.Scanned, res.Deleted, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d file(s) could not be purged", res.Failed)
			}
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() // 确保在应用退出时刷新所有缓冲的日志条目

	logger.Info("启动文件分享程序...")

	// 创建并构建应用服务器实例
	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Error("无法启动应用程序", zap.Error(err))
		return err
	}
	srv.Run(cmd.Context())

	logger.Info("文件分享程序已退出。")
	return nil
}

// bootstrap 加载配置并初始化日志系统
func bootstrap() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadConfigFrom(configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("加载配置出错: %w", err)
	}

	if err = os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("初始化日志系统失败: %w", err)
	}
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	return cfg, nil
}

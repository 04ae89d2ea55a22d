// Package sweeper 定期清理已过期的文件, 未设置过期时间的文件永久保留
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ItemFailure 单个文件清理失败
type ItemFailure struct {
	FileID string `json:"file_id"`
	Stage  string `json:"stage"` // blob / record
	Err    error  `json:"-"`
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("sweep %s (%s): %v", f.FileID, f.Stage, f.Err)
}

// Result 一次清理的统计
type Result struct {
	Scanned  int
	Deleted  int
	Failed   int
	Failures []ItemFailure
}

// Sweeper 过期文件清理任务
type Sweeper struct {
	fileRepo repositories.FileRepository
	logRepo  repositories.AccessLogRepository
	tm       explorer.TransactionManager
	storage  storage.StorageService
	cfg      config.SweeperConfig
	clock    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewSweeper(
	fileRepo repositories.FileRepository,
	logRepo repositories.AccessLogRepository,
	tm explorer.TransactionManager,
	storageService storage.StorageService,
	cfg config.SweeperConfig,
) *Sweeper {
	return &Sweeper{
		fileRepo: fileRepo,
		logRepo:  logRepo,
		tm:       tm,
		storage:  storageService,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Start 按 cron 表达式调度, 上一次未结束时跳过本次
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cron.PrintfLogger(logger.StdLogger())),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger.StdLogger())), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.cfg.Spec, err)
	}
	c.Start()
	s.cron = c
	s.running = true
	logger.Info("Expiry sweeper started", zap.String("spec", s.cfg.Spec))
	return nil
}

// Stop 等待正在执行的清理结束, 或 ctx 超时
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("Expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 按批清理所有过期文件, 每个文件独立处理, 单个失败不影响其余文件
// 失败的文件留在原处, 游标越过它们继续向后翻页, 不会阻塞后面的文件
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	var (
		res    Result
		cursor *repositories.ExpiredCursor
	)
	now := s.clock()
	for ctx.Err() == nil {
		files, err := s.fileRepo.FindExpired(ctx, now, cursor, s.cfg.BatchSize)
		if err != nil {
			logger.Error("Sweeper: 查询过期文件失败", zap.Error(err))
			break
		}
		res.Scanned += len(files)

		for i := range files {
			if ctx.Err() != nil {
				break
			}
			file := &files[i]
			if failure := s.sweepOne(ctx, file); failure != nil {
				res.Failed++
				res.Failures = append(res.Failures, *failure)
				metrics.SweeperItems.WithLabelValues("failed").Inc()
				s.recordFailure(ctx, file, failure)
				continue
			}
			res.Deleted++
			metrics.SweeperItems.WithLabelValues("deleted").Inc()
		}

		if s.cfg.BatchSize <= 0 || len(files) < s.cfg.BatchSize {
			break
		}
		last := files[len(files)-1]
		cursor = &repositories.ExpiredCursor{ExpiresAt: *last.ExpiresAt, ID: last.ID}
	}

	if res.Scanned > 0 {
		logger.Info("Sweeper run finished",
			zap.Int("scanned", res.Scanned), zap.Int("deleted", res.Deleted), zap.Int("failed", res.Failed))
	}
	return res
}

// sweepOne 先删 Blob 再删记录, Blob 删除失败时保留记录以便下次重试
func (s *Sweeper) sweepOne(ctx context.Context, file *models.File) *ItemFailure {
	if err := s.storage.RemoveObject(ctx, file.OssBucket, file.OssKey); err != nil {
		return &ItemFailure{FileID: file.ID, Stage: "blob", Err: err}
	}
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		// 记录已被所有者并发删除时没有行受影响, 视为成功
		_, err := s.fileRepo.DeleteCascade(tx, file.ID)
		return err
	})
	if err != nil {
		return &ItemFailure{FileID: file.ID, Stage: "record", Err: err}
	}
	return nil
}

func (s *Sweeper) recordFailure(ctx context.Context, file *models.File, failure *ItemFailure) {
	logger.Error("Sweeper: 清理过期文件失败",
		zap.String("fileID", file.ID), zap.String("ossKey", file.OssKey), zap.String("stage", failure.Stage), zap.Error(failure.Err))
	entry := &models.DeletionFailureLog{
		FileID:   file.ID,
		FileName: file.OriginalName,
		OssKey:   file.OssKey,
		Reason:   failure.Error(),
	}
	if err := s.logRepo.CreateDeletionFailure(ctx, entry); err != nil {
		logger.Error("Sweeper: 写入删除失败日志失败", zap.String("fileID", file.ID), zap.Error(err))
	}
}

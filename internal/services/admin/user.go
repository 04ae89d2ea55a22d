package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
)

// Profile 当前用户及其名下文件与分享的概况
type Profile struct {
	User       *models.User            `json:"user"`
	Files      *repositories.FileStats `json:"files"`
	LiveShares int64                   `json:"live_shares"`
}

type UserService interface {
	// GetProfile 用户不存在时返回 xerr.ErrUserNotFound
	GetProfile(ctx context.Context, userID uint64) (*Profile, error)
}

type userService struct {
	userRepo  repositories.UserRepository
	fileRepo  repositories.FileRepository
	shareRepo repositories.ShareRepository
}

var _ UserService = (*userService)(nil)

func NewUserService(userRepo repositories.UserRepository, fileRepo repositories.FileRepository, shareRepo repositories.ShareRepository) UserService {
	return &userService{userRepo: userRepo, fileRepo: fileRepo, shareRepo: shareRepo}
}

func (s *userService) GetProfile(ctx context.Context, userID uint64) (*Profile, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, xerr.ErrUserNotFound) {
			return nil, err
		}
		logger.Error("Load profile user failed", zap.Uint64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("load user: %w", xerr.ErrDatabaseError)
	}

	now := time.Now()
	stats, err := s.fileRepo.Stats(ctx, userID, now)
	if err != nil {
		logger.Error("Load profile file stats failed", zap.Uint64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("load file stats: %w", xerr.ErrDatabaseError)
	}
	live, err := s.shareRepo.CountLiveByOwner(ctx, userID, now)
	if err != nil {
		logger.Error("Count live shares failed", zap.Uint64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("count live shares: %w", xerr.ErrDatabaseError)
	}
	return &Profile{User: user, Files: stats, LiveShares: live}, nil
}

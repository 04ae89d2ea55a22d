package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
)

// AuthService 签发调用者身份, 文件访问决策只依赖其中的 userID
type AuthService interface {
	RegisterUser(ctx context.Context, username, password, email string) (*models.User, error)
	// LoginUser identifier 可以是用户名或邮箱
	LoginUser(ctx context.Context, identifier, password string) (string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      *config.JWTConfig
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

func NewAuthService(userRepo repositories.UserRepository, cfg *config.JWTConfig) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *authService) RegisterUser(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, xerr.ErrInvalidParams
	}

	//检查用户名是否存在
	if _, err := s.userRepo.GetUserByUsername(ctx, username); err == nil {
		return nil, xerr.ErrUserAlreadyExists
	} else if !errors.Is(err, xerr.ErrUserNotFound) {
		return nil, fmt.Errorf("check username existence: %w", xerr.ErrDatabaseError)
	}

	//检查邮箱是否存在
	if _, err := s.userRepo.GetUserByEmail(ctx, email); err == nil {
		return nil, xerr.ErrEmailAlreadyExists
	} else if !errors.Is(err, xerr.ErrUserNotFound) {
		return nil, fmt.Errorf("check email existence: %w", xerr.ErrDatabaseError)
	}

	//哈希密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
		Email:        email,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", xerr.ErrDatabaseError)
	}

	logger.Info("User registered successfully", zap.String("username", user.Username), zap.Uint64("userID", user.ID))
	return user, nil
}

func (s *authService) LoginUser(ctx context.Context, identifier, password string) (string, error) {
	// 先按用户名查找, 未找到再按邮箱查找
	user, err := s.userRepo.GetUserByUsername(ctx, identifier)
	if errors.Is(err, xerr.ErrUserNotFound) {
		user, err = s.userRepo.GetUserByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, xerr.ErrUserNotFound) {
			// 不区分用户不存在与密码错误
			return "", xerr.ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", xerr.ErrDatabaseError)
	}

	//验证密码
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		logger.Warn("Login failed: invalid credentials", zap.Uint64("userID", user.ID))
		return "", xerr.ErrInvalidCredentials
	}
	if !user.CanSignIn() {
		return "", xerr.ErrPermissionDenied
	}

	tokenString, err := utils.GenerateToken(
		user.ID,
		user.Username,
		user.Email,
		s.cfg.SecretKey,
		s.cfg.Issuer,
		s.cfg.ExpiresIn,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	// 登录时间只用于资料展示, 写失败不影响登录
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		logger.Warn("Record last login failed", zap.Uint64("userID", user.ID), zap.Error(err))
	}
	return tokenString, nil
}

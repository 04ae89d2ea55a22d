package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PasswordHeader 也可以通过 password 查询参数传入访问密码
const PasswordHeader = "X-File-Password"

// requestContext 组装访问决策需要的调用方信息
func requestContext(c *gin.Context, password *string) access.RequestContext {
	return access.RequestContext{
		CallerID:  utils.OptionalUserID(c),
		Password:  password,
		Now:       time.Now().UTC(),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// passwordFromRequest 依次读取请求头与查询参数, 都没有时返回 nil
func passwordFromRequest(c *gin.Context) *string {
	if pw := c.GetHeader(PasswordHeader); pw != "" {
		return &pw
	}
	if pw, ok := c.GetQuery("password"); ok {
		return &pw
	}
	return nil
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}

var deniedCodes = map[string]int{
	string(access.ReasonExpired):         xerr.FileExpiredCode,
	string(access.ReasonForbidden):       xerr.ForbiddenCode,
	string(access.ReasonInvalidPassword): xerr.PasswordInvalidCode,
	string(access.ReasonLimitExceeded):   xerr.LimitExceededCode,
}

// respondError 把服务层错误映射为 HTTP 状态码与业务码
func respondError(c *gin.Context, err error) {
	var denied *xerr.DeniedError
	switch {
	// 不存在、过期、次数用完对分享接收人返回同一个结果
	case errors.Is(err, xerr.ErrShareUnavailable), errors.Is(err, xerr.ErrShareNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.ShareUnavailableCode, xerr.ErrShareUnavailable.Error())
	case errors.As(err, &denied):
		code, ok := deniedCodes[denied.Reason]
		if !ok {
			code = xerr.ForbiddenCode
		}
		xerr.JSONResponse(c, http.StatusForbidden, code, denied.Err.Error(), gin.H{"reason": denied.Reason})
	case errors.Is(err, xerr.ErrFileNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.FileNotFoundCode, xerr.ErrFileNotFound.Error())
	case errors.Is(err, xerr.ErrUserNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.UserNotFoundCode, xerr.ErrUserNotFound.Error())
	case errors.Is(err, xerr.ErrPermissionDenied):
		xerr.Error(c, http.StatusForbidden, xerr.PermissionDeniedCode, xerr.ErrPermissionDenied.Error())
	case errors.Is(err, xerr.ErrInvalidExpiry):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidExpiryCode, xerr.ErrInvalidExpiry.Error())
	case errors.Is(err, xerr.ErrInvalidParams):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
	case errors.Is(err, xerr.ErrInvalidCredentials):
		xerr.Error(c, http.StatusUnauthorized, xerr.InvalidCredentialsCode, xerr.ErrInvalidCredentials.Error())
	case errors.Is(err, xerr.ErrUserAlreadyExists):
		xerr.Error(c, http.StatusConflict, xerr.UserAlreadyExistsCode, xerr.ErrUserAlreadyExists.Error())
	case errors.Is(err, xerr.ErrEmailAlreadyExists):
		xerr.Error(c, http.StatusConflict, xerr.EmailAlreadyExistsCode, xerr.ErrEmailAlreadyExists.Error())
	case errors.Is(err, xerr.ErrQuotaExceeded):
		xerr.Error(c, http.StatusConflict, xerr.QuotaExceededCode, xerr.ErrQuotaExceeded.Error())
	case errors.Is(err, xerr.ErrUnsupportedType):
		xerr.Error(c, http.StatusUnsupportedMediaType, xerr.UnsupportedTypeCode, xerr.ErrUnsupportedType.Error())
	case errors.Is(err, xerr.ErrStorageError):
		xerr.Error(c, http.StatusBadGateway, xerr.StorageErrorCode, xerr.ErrStorageError.Error())
	case errors.Is(err, xerr.ErrNotifyFailed):
		xerr.Error(c, http.StatusBadGateway, xerr.NotifyErrorCode, xerr.ErrNotifyFailed.Error())
	case errors.Is(err, xerr.ErrDatabaseError):
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, xerr.ErrDatabaseError.Error())
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, xerr.ErrInternalServer.Error())
	}
}

// bindError 参数绑定失败
func bindError(c *gin.Context, err error) {
	xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, strings.TrimSpace(err.Error()))
}

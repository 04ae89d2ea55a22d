package utils

import (
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// ContextUserIDKey 鉴权中间件写入 gin.Context 的用户 ID 键
const ContextUserIDKey = "userID"

// GetUserIDFromContext 从 Gin 上下文中获取并验证用户ID
// 如果获取失败或类型不正确，会中止请求并返回错误
func GetUserIDFromContext(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "User ID not found in context")
		return 0, false
	}
	currentUserID, ok := userID.(uint64)
	if !ok {
		xerr.AbortWithError(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Invalid user ID type in context")
		return 0, false
	}
	return currentUserID, true
}

// OptionalUserID 匿名请求返回 nil, 不中止请求
func OptionalUserID(c *gin.Context) *uint64 {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		return nil
	}
	id, ok := userID.(uint64)
	if !ok {
		return nil
	}
	return &id
}

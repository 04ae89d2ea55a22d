package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
)

type UserHandler struct {
	users admin.UserService
}

func NewUserHandler(users admin.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me 返回当前用户、文件统计和仍可兑换的分享数
// @Summary 当前用户概况
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Failure 401 {object} xerr.Response
// @Failure 404 {object} xerr.Response
// @Router /api/v1/users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", profile)
}

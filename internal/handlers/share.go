package handlers

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/preview"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateShareRequest 创建分享链接请求
type CreateShareRequest struct {
	FileID      string    `json:"file_id" binding:"required"`
	Email       string    `json:"email" binding:"required,email"`
	ExpiresAt   time.Time `json:"expires_at" binding:"required"`
	MaxDownload *int64    `json:"max_download" binding:"required,min=0"`
	Note        string    `json:"note" binding:"max=1000"`
}

// ShareAccessRequest 分享下载与预览请求, 密码也可以放在请求头或查询参数中
type ShareAccessRequest struct {
	Password *string `json:"password"`
}

type ShareHandler struct {
	shareService   share.ShareService
	previewService preview.PreviewService
}

func NewShareHandler(shareService share.ShareService, previewService preview.PreviewService) *ShareHandler {
	return &ShareHandler{shareService: shareService, previewService: previewService}
}

// @Summary 创建分享链接
// @Description 从文件剩余下载次数中划出额度, 并通过邮件通知接收人
// @Tags 文件分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body CreateShareRequest true "分享信息"
// @Success 201 {object} xerr.Response "创建成功; code 为 20001 时表示通知邮件发送失败"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 403 {object} xerr.Response "非文件所有者"
// @Failure 409 {object} xerr.Response "分享次数超过文件剩余下载次数"
// @Router /api/v1/shares [post]
func (h *ShareHandler) CreateShare(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.shareService.CreateShare(c.Request.Context(), userID, share.CreateShareInput{
		FileID:      req.FileID,
		Email:       req.Email,
		ExpiresAt:   req.ExpiresAt,
		MaxDownload: *req.MaxDownload,
		Note:        req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"share": res.Share, "share_url": res.ShareURL}
	if res.NotifyErr != nil {
		xerr.JSONResponse(c, http.StatusCreated, xerr.PartialSuccessCode, "分享已创建，但通知邮件发送失败", data)
		return
	}
	xerr.Success(c, http.StatusCreated, "分享链接创建成功", data)
}

// @Summary 查询分享详情
// @Tags 文件分享
// @Produce json
// @Param token path string true "分享 token"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response "分享链接已失效"
// @Router /api/v1/shares/{token} [get]
func (h *ShareHandler) GetShare(c *gin.Context) {
	info, err := h.shareService.Resolve(c.Request.Context(), c.Param("token"), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", info)
}

// @Summary 通过分享链接下载
// @Tags 文件分享
// @Accept json
// @Produce octet-stream
// @Param token path string true "分享 token"
// @Param data body ShareAccessRequest false "访问密码"
// @Success 200 {file} file
// @Failure 403 {object} xerr.Response "密码错误"
// @Failure 404 {object} xerr.Response "分享链接已失效"
// @Router /api/v1/shares/{token}/download [post]
func (h *ShareHandler) Download(c *gin.Context) {
	rc, ok := h.shareAccess(c)
	if !ok {
		return
	}
	res, err := h.shareService.DownloadViaShare(c.Request.Context(), c.Param("token"), rc)
	if err != nil {
		respondError(c, err)
		return
	}
	defer res.Reader.Close()

	c.DataFromReader(http.StatusOK, res.Size, contentType(res.File.MimeType), res.Reader, map[string]string{
		"Content-Disposition": contentDisposition("attachment", res.File.OriginalName),
	})
}

// @Summary 分享文件水印预览
// @Description 返回带接收人邮箱与访问时间水印的 PDF 或 PNG
// @Tags 文件分享
// @Accept json
// @Produce application/pdf,image/png
// @Param token path string true "分享 token"
// @Param data body ShareAccessRequest false "访问密码"
// @Success 200 {file} file
// @Failure 404 {object} xerr.Response "分享链接已失效"
// @Failure 415 {object} xerr.Response "该文件类型不支持预览"
// @Router /api/v1/shares/{token}/preview [post]
func (h *ShareHandler) Preview(c *gin.Context) {
	rc, ok := h.shareAccess(c)
	if !ok {
		return
	}
	rendition, err := h.previewService.PreviewViaShare(c.Request.Context(), c.Param("token"), rc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, rendition.MimeType, rendition.Data)
}

// @Summary 文件的分享列表
// @Tags 文件分享
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(10)
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id}/shares [get]
func (h *ShareHandler) ListShares(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.shareService.ListShares(c.Request.Context(), userID, c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", result)
}

// shareAccess 请求体可以为空
func (h *ShareHandler) shareAccess(c *gin.Context) (access.RequestContext, bool) {
	var req ShareAccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Debug("share access: bad body", zap.Error(err))
			bindError(c, err)
			return access.RequestContext{}, false
		}
	}
	password := req.Password
	if password == nil {
		password = passwordFromRequest(c)
	}
	return requestContext(c, password), true
}

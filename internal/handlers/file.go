package handlers

import (
	"mime"
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadRequest multipart 表单中除文件外的字段
type UploadRequest struct {
	Visibility    models.Visibility `form:"visibility"`
	Password      *string           `form:"password"`
	ExpiresAt     *time.Time        `form:"expires_at" time_format:"2006-01-02T15:04:05Z07:00"`
	DownloadLimit *int64            `form:"download_limit" binding:"omitempty,min=0"`
}

// UpdateMetadataRequest download_limit 为 null 表示取消下载次数限制
type UpdateMetadataRequest struct {
	Visibility    models.Visibility `json:"visibility"`
	Password      *string           `json:"password"`
	ExpiresAt     *time.Time        `json:"expires_at"`
	DownloadLimit *int64            `json:"download_limit"`
}

type UpdateVisibilityRequest struct {
	Visibility models.Visibility `json:"visibility" binding:"required"`
	Password   *string           `json:"password"`
}

type FileHandler struct {
	fileService  explorer.FileService
	auditService audit.Service
}

func NewFileHandler(fileService explorer.FileService, auditService audit.Service) *FileHandler {
	return &FileHandler{fileService: fileService, auditService: auditService}
}

// @Summary 上传文件
// @Description 上传文件并设置访问策略, 默认私有
// @Tags 文件管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "文件"
// @Param visibility formData string false "private / password_protected / public"
// @Param password formData string false "访问密码"
// @Param expires_at formData string false "过期时间 RFC3339"
// @Param download_limit formData int false "下载次数上限"
// @Success 201 {object} xerr.Response "上传成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 502 {object} xerr.Response "存储服务错误"
// @Router /api/v1/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		bindError(c, err)
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("Upload: open multipart file failed", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "读取上传文件失败")
		return
	}
	defer src.Close()

	file, err := h.fileService.Upload(c.Request.Context(), userID, explorer.UploadInput{
		FileName:      fileHeader.Filename,
		Size:          fileHeader.Size,
		Content:       src,
		Visibility:    req.Visibility,
		Password:      req.Password,
		ExpiresAt:     req.ExpiresAt,
		DownloadLimit: req.DownloadLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusCreated, "文件上传成功", file)
}

// @Summary 修改文件访问策略
// @Tags 文件管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Param data body UpdateMetadataRequest true "访问策略"
// @Success 200 {object} xerr.Response "修改成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 403 {object} xerr.Response "非文件所有者"
// @Router /api/v1/files/{id}/metadata [patch]
func (h *FileHandler) UpdateMetadata(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	file, err := h.fileService.UpdateMetadata(c.Request.Context(), userID, explorer.UpdateMetadataInput{
		FileID:        c.Param("id"),
		Visibility:    req.Visibility,
		Password:      req.Password,
		ExpiresAt:     req.ExpiresAt,
		DownloadLimit: req.DownloadLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "文件访问策略已更新", file)
}

// @Summary 修改文件可见性
// @Tags 文件管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Param data body UpdateVisibilityRequest true "可见性"
// @Success 200 {object} xerr.Response "修改成功"
// @Router /api/v1/files/{id}/visibility [patch]
func (h *FileHandler) UpdateVisibility(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdateVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	file, err := h.fileService.UpdateVisibility(c.Request.Context(), userID, c.Param("id"), req.Visibility, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "文件可见性已更新", file)
}

// @Summary 查询文件元数据
// @Description 不消耗下载次数, 不写访问日志
// @Tags 文件访问
// @Produce json
// @Param id path string true "文件ID"
// @Success 200 {object} xerr.Response
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/v1/files/{id}/metadata [get]
func (h *FileHandler) GetMetadata(c *gin.Context) {
	meta, err := h.fileService.GetMetadata(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", meta)
}

// @Summary 下载文件
// @Description 匿名或登录用户下载, 受过期时间、可见性、密码与下载次数限制
// @Tags 文件访问
// @Produce octet-stream
// @Param id path string true "文件ID"
// @Param password query string false "访问密码, 也可使用 X-File-Password 请求头"
// @Success 200 {file} file
// @Failure 403 {object} xerr.Response "访问被拒绝, data.reason 给出原因"
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/v1/files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	rc := requestContext(c, passwordFromRequest(c))
	res, err := h.fileService.Download(c.Request.Context(), c.Param("id"), rc)
	if err != nil {
		respondError(c, err)
		return
	}
	defer res.Reader.Close()

	c.DataFromReader(http.StatusOK, res.Size, contentType(res.File.MimeType), res.Reader, map[string]string{
		"Content-Disposition": contentDisposition("attachment", res.File.OriginalName),
	})
}

// @Summary 删除文件
// @Tags 文件管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Success 200 {object} xerr.Response "删除成功"
// @Router /api/v1/files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "文件已删除", nil)
}

// @Summary 用户文件统计
// @Tags 文件管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/stats [get]
func (h *FileHandler) Stats(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	stats, err := h.fileService.Stats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", stats)
}

// @Summary 文件访问日志
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(10)
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id}/access-logs [get]
func (h *FileHandler) ListAccessLogs(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.auditService.ListAccessLogs(c.Request.Context(), userID, c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", result)
}

// @Summary 文件失败访问日志
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param id path string true "文件ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(10)
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id}/failed-logs [get]
func (h *FileHandler) ListFailedLogs(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.auditService.ListFailedLogs(c.Request.Context(), userID, c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", result)
}

func contentType(mimeType string) string {
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// contentDisposition 文件名按 RFC 2231 编码
func contentDisposition(kind, filename string) string {
	if v := mime.FormatMediaType(kind, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return kind
}

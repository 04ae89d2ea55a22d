package explorer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sniffLen mimetype 默认读取的头部长度
const sniffLen = 3072

func (s *fileService) Upload(ctx context.Context, ownerID uint64, in UploadInput) (*models.File, error) {
	name := strings.TrimSpace(path.Base(in.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file name is required", xerr.ErrInvalidParams)
	}
	if in.Content == nil {
		return nil, fmt.Errorf("%w: file content is required", xerr.ErrInvalidParams)
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", xerr.ErrInvalidParams, visibility)
	}
	password, err := resolvePassword(nil, visibility, in.Password)
	if err != nil {
		return nil, err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.clock()) {
		return nil, xerr.ErrInvalidExpiry
	}
	if in.DownloadLimit != nil && *in.DownloadLimit < 0 {
		return nil, fmt.Errorf("%w: download limit must not be negative", xerr.ErrInvalidParams)
	}

	// 读取头部嗅探内容类型, 再拼回完整的流
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: read upload body: %v", xerr.ErrInvalidParams, err)
	}
	head = head[:n]
	mimeType := mimetype.Detect(head).String()
	body := io.MultiReader(bytes.NewReader(head), in.Content)

	size := in.Size
	if size <= 0 {
		size = -1 // 未知长度
	}

	id := uuid.NewString()
	bucket := s.storage.DefaultBucket()
	key := fmt.Sprintf("files/%d/%s", ownerID, id)
	put, err := s.storage.PutObject(ctx, bucket, key, body, size, mimeType)
	if err != nil {
		logger.Error("Upload: put object failed", zap.String("ossKey", key), zap.Error(err))
		return nil, fmt.Errorf("file service: %w: %v", xerr.ErrStorageError, err)
	}

	file := &models.File{
		ID:            id,
		OwnerID:       ownerID,
		OssBucket:     bucket,
		OssKey:        key,
		OriginalName:  name,
		MimeType:      mimeType,
		Size:          put.Size,
		Visibility:    visibility,
		DownloadLimit: in.DownloadLimit,
	}
	if hash, ok := password.(string); ok {
		file.Password = &hash
	}
	if in.ExpiresAt != nil {
		at := in.ExpiresAt.UTC()
		file.ExpiresAt = &at
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		logger.Error("Upload: create file record failed", zap.String("fileID", id), zap.Error(err))
		// 记录写入失败时清理已上传的对象
		if rmErr := s.storage.RemoveObject(ctx, bucket, key); rmErr != nil {
			logger.Error("Upload: cleanup blob failed", zap.String("ossKey", key), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
	}

	logger.Info("Upload success",
		zap.Uint64("userID", ownerID), zap.String("fileID", id), zap.String("mimeType", mimeType), zap.Int64("size", file.Size))
	return file, nil
}

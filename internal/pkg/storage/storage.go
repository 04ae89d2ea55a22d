package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/config"
)

// ErrObjectNotFound 对象不存在, 各实现把后端的 NoSuchKey 转换为该错误
var ErrObjectNotFound = errors.New("storage: object not found")

// StorageService 定义了通用的文件存储操作接口, 对象由 bucket + key 寻址
type StorageService interface {
	// 上传文件到指定存储桶
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error)
	// 从指定存储桶下载文件，返回一个读取器和对象信息, 调用方负责关闭 Reader
	GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error)
	// 删除对象, 对象不存在时不返回错误
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	// 检查存储桶是否存在
	IsBucketExist(ctx context.Context, bucketName string) (bool, error)
	// 创建存储桶
	MakeBucket(ctx context.Context, bucketName string) error
	// 默认存储桶
	DefaultBucket() string
}

type PutObjectResult struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string // 对象哈希值
}

type GetObjectResult struct {
	Reader   io.ReadCloser // 文件内容读取器，需要在使用后关闭
	Size     int64
	MimeType string
}

// NewStorageService 根据配置选择存储后端
func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS)
	case "memory":
		return NewMemoryStorageService("memory"), nil
	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Storage.Type)
	}
}

// ReadAll 读取整个对象, 预览渲染需要完整字节
func ReadAll(ctx context.Context, s StorageService, bucketName, objectName string) ([]byte, error) {
	obj, err := s.GetObject(ctx, bucketName, objectName)
	if err != nil {
		return nil, err
	}
	defer obj.Reader.Close()
	data, err := io.ReadAll(obj.Reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectName, err)
	}
	return data, nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorageService 进程内对象存储, 用于本地开发与测试
type MemoryStorageService struct {
	mu      sync.RWMutex
	bucket  string
	buckets map[string]map[string]memoryObject
}

var _ StorageService = (*MemoryStorageService)(nil)

func NewMemoryStorageService(defaultBucket string) *MemoryStorageService {
	return &MemoryStorageService{
		bucket:  defaultBucket,
		buckets: map[string]map[string]memoryObject{defaultBucket: {}},
	}
}

func (m *MemoryStorageService) DefaultBucket() string {
	return m.bucket
}

func (m *MemoryStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("read upload body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucketName]
	if !ok {
		return PutObjectResult{}, fmt.Errorf("bucket %q does not exist", bucketName)
	}
	objects[objectName] = memoryObject{data: data, contentType: contentType}
	return PutObjectResult{Bucket: bucketName, Key: objectName, Size: int64(len(data))}, nil
}

func (m *MemoryStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucketName][objectName]
	if !ok {
		return GetObjectResult{}, ErrObjectNotFound
	}
	// 返回副本, 调用方无法修改内部状态
	data := append([]byte(nil), obj.data...)
	return GetObjectResult{
		Reader:   io.NopCloser(bytes.NewReader(data)),
		Size:     int64(len(data)),
		MimeType: obj.contentType,
	}, nil
}

func (m *MemoryStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucketName], objectName)
	return nil
}

func (m *MemoryStorageService) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucketName]
	return ok, nil
}

func (m *MemoryStorageService) MakeBucket(ctx context.Context, bucketName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucketName]; !ok {
		m.buckets[bucketName] = map[string]memoryObject{}
	}
	return nil
}

// Has 对象是否存在
func (m *MemoryStorageService) Has(bucketName, objectName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucketName][objectName]
	return ok
}

// Package search 把访问审计事件镜像到 Elasticsearch, 便于跨文件检索
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// AuditIndexer 写入审计事件到指定索引
type AuditIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewAuditIndexer(client *elasticsearch.Client, index string) *AuditIndexer {
	return &AuditIndexer{client: client, index: index}
}

// IndexAccessEvent 写入一条事件, 文档 ID 由 Elasticsearch 生成
func (i *AuditIndexer) IndexAccessEvent(ctx context.Context, event models.AccessEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal access event: %w", err)
	}

	req := esapi.IndexRequest{
		Index: i.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index access event: %w", err)
	}
	defer res.Body.Close()
	// 读完响应体以复用连接
	_, _ = io.Copy(io.Discard, res.Body)

	if res.IsError() {
		return fmt.Errorf("index access event: %s", res.Status())
	}
	return nil
}

// Package watermark 在预览副本上叠加接收人与访问时间, 用于泄露追溯
// 渲染只依赖 (原始字节, 邮箱, 时间戳), 相同输入得到相同输出
package watermark

import (
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// TimestampLayout 水印中的时间格式, 例如 "05 Mar 2025, 14:07:31"
const TimestampLayout = "02 Jan 2006, 15:04:05"

// ErrUnsupportedType 没有为该内容类型定义水印
var ErrUnsupportedType = errors.New("watermark: unsupported content type")

// Stamp 水印内容
type Stamp struct {
	Email string
	At    time.Time
}

// Lines 返回两行水印文字
func (s Stamp) Lines() (string, string) {
	return "Shared with: " + s.Email, "Downloaded at: " + s.At.UTC().Format(TimestampLayout)
}

// Result 渲染结果
type Result struct {
	Data     []byte
	MimeType string
	IsImage  bool
}

var rasterTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Detect 嗅探内容类型
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// Apply 按内容类型选择 PDF 或图片水印
func Apply(data []byte, stamp Stamp) (*Result, error) {
	mt := mimetype.Detect(data)
	if mt.Is("application/pdf") {
		out, err := PDF(data, stamp)
		if err != nil {
			return nil, err
		}
		return &Result{Data: out, MimeType: "application/pdf"}, nil
	}
	for _, t := range rasterTypes {
		if mt.Is(t) {
			out, err := Image(data, stamp)
			if err != nil {
				return nil, err
			}
			return &Result{Data: out, MimeType: "image/png", IsImage: true}, nil
		}
	}
	return nil, ErrUnsupportedType
}

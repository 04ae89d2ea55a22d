package models

import (
	"time"
)

// ShareLink 对应 share_links 表
// DownloadCount 与文件自身的下载计数相互独立, 且不会超过 MaxDownload
type ShareLink struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Token          string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"token"`
	FileID         string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	RecipientEmail string    `gorm:"type:varchar(255);not null" json:"recipient_email"`
	ExpiresAt      time.Time `gorm:"not null" json:"expires_at"`
	MaxDownload    int64     `gorm:"not null" json:"max_download"`
	DownloadCount  int64     `gorm:"not null;default:0" json:"download_count"`
	Note           string    `gorm:"type:text" json:"note"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 定义 GORM 关联，方便预加载
	File *File `gorm:"foreignKey:FileID" json:"-"`
}

// TableName 指定 GORM 使用的表名
func (ShareLink) TableName() string {
	return "share_links"
}

// IsExpired 严格比较, 与文件过期语义一致
func (s *ShareLink) IsExpired(now time.Time) bool {
	return now.UTC().After(s.ExpiresAt.UTC())
}

// IsExhausted 下载次数是否已用完
func (s *ShareLink) IsExhausted() bool {
	return s.DownloadCount >= s.MaxDownload
}

package models

import (
	"time"
)

// Visibility 文件的访问策略等级
type Visibility string

const (
	VisibilityPrivate           Visibility = "private"            // 仅所有者
	VisibilityPasswordProtected Visibility = "password_protected" // 所有者或持有正确密码者
	VisibilityPublic            Visibility = "public"             // 任何人, 仍受过期时间与下载次数限制
)

// Valid 判断可见性取值是否合法
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPasswordProtected, VisibilityPublic:
		return true
	}
	return false
}

// File 对应 files 表
// Password 仅在 Visibility 为 password_protected 时非空, 存储 bcrypt 哈希
// DownloadLimit 非空时 DownloadCount 不会超过 DownloadLimit
type File struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID       uint64     `gorm:"not null;index" json:"owner_id"`
	OssBucket     string     `gorm:"type:varchar(64);not null" json:"-"`
	OssKey        string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	OriginalName  string     `gorm:"type:varchar(255);not null" json:"original_name"`
	MimeType      string     `gorm:"type:varchar(128);not null;default:''" json:"mime_type"`
	Size          int64      `gorm:"not null;default:0" json:"size"`
	Visibility    Visibility `gorm:"type:varchar(32);not null;default:'private'" json:"visibility"`
	Password      *string    `gorm:"type:varchar(255);default:null" json:"-"` // - 表示不输出到 JSON
	ExpiresAt     *time.Time `gorm:"index;default:null" json:"expires_at"`
	DownloadLimit *int64     `gorm:"default:null" json:"download_limit"`
	DownloadCount int64      `gorm:"not null;default:0" json:"download_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// IsExpired 严格比较, 等于过期时间的时刻仍然有效
func (f *File) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && now.UTC().After(f.ExpiresAt.UTC())
}

// HasPassword 文件是否需要访问密码
func (f *File) HasPassword() bool {
	return f.Visibility == VisibilityPasswordProtected
}

// RemainingDownloads 返回剩余下载次数, 无限制时第二个返回值为 false
func (f *File) RemainingDownloads() (int64, bool) {
	if f.DownloadLimit == nil {
		return 0, false
	}
	remaining := *f.DownloadLimit - f.DownloadCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

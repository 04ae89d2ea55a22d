package models

import "time"

// AccessLog 对应 access_logs 表, 记录一次成功的文件访问
type AccessLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID     string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	IPAddress  string    `gorm:"type:varchar(64);not null;default:''" json:"ip_address"`
	UserAgent  string    `gorm:"type:varchar(512);not null;default:''" json:"user_agent"`
	Email      *string   `gorm:"type:varchar(255);default:null" json:"email"`
	AccessedAt time.Time `gorm:"not null;index" json:"accessed_at"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// FailedAccessLog 对应 failed_access_logs 表, Reason 为拒绝原因
type FailedAccessLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID     string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	IPAddress  string    `gorm:"type:varchar(64);not null;default:''" json:"ip_address"`
	UserAgent  string    `gorm:"type:varchar(512);not null;default:''" json:"user_agent"`
	Email      *string   `gorm:"type:varchar(255);default:null" json:"email"`
	Reason     string    `gorm:"type:varchar(64);not null" json:"reason"`
	AccessedAt time.Time `gorm:"not null;index" json:"accessed_at"`
}

func (FailedAccessLog) TableName() string {
	return "failed_access_logs"
}

// DeletionFailureLog 对应 file_deletion_failure_logs 表
// 清理任务或删除操作中 Blob/记录删除失败时写入, 便于人工清理
type DeletionFailureLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID    string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	FileName  string    `gorm:"type:varchar(255);not null;default:''" json:"file_name"`
	OssKey    string    `gorm:"type:varchar(255);not null;default:''" json:"oss_key"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DeletionFailureLog) TableName() string {
	return "file_deletion_failure_logs"
}

// AccessEvent 审计事件, 用于镜像写入搜索引擎
type AccessEvent struct {
	FileID     string    `json:"file_id"`
	Outcome    string    `json:"outcome"` // success / failure
	Reason     string    `json:"reason,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Email      *string   `json:"email,omitempty"`
	AccessedAt time.Time `json:"accessed_at"`
}

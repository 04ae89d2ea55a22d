package models

import (
	"time"
)

// User 对应 users 表, 只承担身份与文件归属: File.OwnerID 指向这里
// 被禁用的用户无法登录, 但其公开文件和已发出的分享链接照常生效
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"type:varchar(64);unique;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Email        string     `gorm:"type:varchar(255);unique;not null" json:"email"`
	Disabled     bool       `gorm:"not null;default:false" json:"disabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// CanSignIn 是否允许签发令牌
func (u *User) CanSignIn() bool {
	return !u.Disabled
}

// Package access 实现文件访问决策, Decide 不做任何 I/O
package access

import (
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
)

// Reason 拒绝原因, 写入失败访问日志
type Reason string

const (
	ReasonExpired         Reason = "expired"
	ReasonForbidden       Reason = "forbidden"
	ReasonInvalidPassword Reason = "invalid_password"
	ReasonLimitExceeded   Reason = "limit_exceeded"
)

// RequestContext 一次访问请求的调用方信息
type RequestContext struct {
	CallerID  *uint64 // 匿名请求为 nil
	Password  *string // 调用方提供的访问密码
	Now       time.Time
	ClientIP  string
	UserAgent string
}

// IsOwner 调用方是否为文件所有者
func (rc RequestContext) IsOwner(f *models.File) bool {
	return rc.CallerID != nil && *rc.CallerID == f.OwnerID
}

// Decision 访问决策结果
type Decision struct {
	Allowed bool
	Reason  Reason
	// OwnerBypass 所有者访问, 不消耗下载次数
	OwnerBypass bool
}

// Err 拒绝时返回带原因的错误
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return xerr.Denied(string(d.Reason))
}

func deny(r Reason) Decision {
	return Decision{Allowed: false, Reason: r}
}

// Decide 按顺序评估, 第一个命中的规则生效:
// 过期对所有者同样生效; 所有者跳过可见性、密码与次数检查
func Decide(file *models.File, rc RequestContext) Decision {
	if file.IsExpired(rc.Now) {
		return deny(ReasonExpired)
	}
	if rc.IsOwner(file) {
		return Decision{Allowed: true, OwnerBypass: true}
	}

	switch file.Visibility {
	case models.VisibilityPrivate:
		return deny(ReasonForbidden)
	case models.VisibilityPasswordProtected:
		if !PasswordMatches(file, rc.Password) {
			return deny(ReasonInvalidPassword)
		}
	case models.VisibilityPublic:
	default:
		// 未知的可见性按私有处理
		return deny(ReasonForbidden)
	}

	if file.DownloadLimit != nil && file.DownloadCount >= *file.DownloadLimit {
		return deny(ReasonLimitExceeded)
	}
	return Decision{Allowed: true}
}

// PasswordMatches 用 bcrypt 比较提供的密码与存储的哈希
// 文件缺少哈希时一律不匹配
func PasswordMatches(file *models.File, supplied *string) bool {
	if supplied == nil || file.Password == nil {
		return false
	}
	return utils.CheckPasswordHash(*supplied, *file.Password)
}

// Observe 记录决策指标并原样返回
func Observe(d Decision) Decision {
	if d.Allowed {
		metrics.AccessDecisions.WithLabelValues("allow", "").Inc()
	} else {
		metrics.AccessDecisions.WithLabelValues("deny", string(d.Reason)).Inc()
	}
	return d
}

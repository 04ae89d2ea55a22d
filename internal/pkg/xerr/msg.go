package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams = errors.New("无效的请求参数")
	ErrFileTooLarge  = errors.New("上传文件过大，超出限制")
	ErrInvalidExpiry = errors.New("过期时间必须晚于当前时间")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("用户名或密码不正确")
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")

	// 权限错误
	ErrPermissionDenied = errors.New("您没有操作此资源的权限")
	ErrAccessDenied     = errors.New("访问被拒绝")

	// 资源未找到错误
	ErrUserNotFound  = errors.New("用户不存在")
	ErrFileNotFound  = errors.New("文件不存在")
	ErrShareNotFound = errors.New("分享链接不存在")
	// 过期与次数用完对外使用同一个错误, 不暴露具体原因
	ErrShareUnavailable = errors.New("分享链接已失效")

	// 业务逻辑冲突
	ErrQuotaExceeded = errors.New("分享次数超过文件剩余下载次数")

	// 预览
	ErrUnsupportedType = errors.New("该文件类型不支持预览")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
	ErrNotifyFailed  = errors.New("通知发送失败")
)

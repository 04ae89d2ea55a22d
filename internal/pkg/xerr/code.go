package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码
	// 操作已完成但存在非致命失败, 例如分享已创建但通知邮件发送失败
	PartialSuccessCode = 20001

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode    = 40000 // 无效的请求参数
	ValidationFailedCode = 40001 // 参数验证失败
	FileTooLargeCode     = 40003 // 文件过大
	InvalidExpiryCode    = 40005 // 过期时间无效

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode       = 40100 // 通用未授权
	TokenInvalidCode       = 40101 // Token 无效或过期
	InvalidCredentialsCode = 40102 // 用户名或密码错误

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	PermissionDeniedCode = 40301 // 非文件所有者
	PasswordRequiredCode = 40302 // 需要访问密码
	PasswordInvalidCode  = 40303 // 访问密码不正确
	FileExpiredCode      = 40304 // 文件已过期
	LimitExceededCode    = 40305 // 下载次数已用完

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode         = 40400 // 通用资源未找到
	UserNotFoundCode     = 40401 // 用户不存在
	FileNotFoundCode     = 40402 // 文件不存在
	ShareUnavailableCode = 40404 // 分享链接不存在或已失效

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode  = 40900 // 用户名已存在
	EmailAlreadyExistsCode = 40901 // 邮箱已存在
	QuotaExceededCode      = 40905 // 分享次数超过文件剩余下载额度

	// --- 媒体类型错误 (415xx) ---
	UnsupportedTypeCode = 41500 // 该文件类型不支持预览

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败（如MinIO）
	NotifyErrorCode         = 50004 // 通知发送失败
)

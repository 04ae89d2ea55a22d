package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// FileShareNotice 分享通知内容
type FileShareNotice struct {
	To       string
	ShareURL string
	FileName string
}

// Notifier 通知分享接收人, 失败不影响已创建的分享
type Notifier interface {
	SendFileShareNotice(ctx context.Context, notice FileShareNotice) error
}

// NewNotifier 根据配置选择 smtp 或仅记录日志
func NewNotifier(cfg *config.MailConfig) (Notifier, error) {
	switch cfg.Provider {
	case "smtp":
		return NewMailNotifier(cfg), nil
	case "log", "":
		return LogNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

var noticeTemplate = template.Must(template.New("share").Parse(`<p>Hello,</p>
<p>A file has been shared with you: <strong>{{.FileName}}</strong></p>
<p><a href="{{.ShareURL}}">Open the shared file</a></p>
<p>If the button does not work, copy this link into your browser:<br>{{.ShareURL}}</p>`))

// RenderNoticeHTML 渲染邮件正文, 文件名等字段会被转义
func RenderNoticeHTML(notice FileShareNotice) (string, error) {
	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, notice); err != nil {
		return "", fmt.Errorf("render share notice: %w", err)
	}
	return buf.String(), nil
}

// MailNotifier 通过 SMTP 发送分享通知
type MailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailNotifier(cfg *config.MailConfig) *MailNotifier {
	return &MailNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (n *MailNotifier) SendFileShareNotice(ctx context.Context, notice FileShareNotice) error {
	body, err := RenderNoticeHTML(notice)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", notice.To)
	m.SetHeader("Subject", "A file has been shared with you: "+notice.FileName)
	m.SetBody("text/plain", fmt.Sprintf("A file has been shared with you: %s\n%s\n", notice.FileName, notice.ShareURL))
	m.AddAlternative("text/html", body)

	// gomail 不支持 context, 先检查是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		logger.Error("Failed to send share notice", zap.String("to", notice.To), zap.Error(err))
		return fmt.Errorf("send share notice: %w", err)
	}
	logger.Info("Share notice sent", zap.String("to", notice.To))
	return nil
}

// LogNotifier 只记录日志, 用于未配置邮件服务的环境
type LogNotifier struct{}

func (LogNotifier) SendFileShareNotice(ctx context.Context, notice FileShareNotice) error {
	logger.Info("Share notice (log only)",
		zap.String("to", notice.To),
		zap.String("file", notice.FileName),
		zap.String("url", notice.ShareURL))
	return nil
}

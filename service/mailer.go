package service

import (
	"context"

	"github.com/BerniceZTT/crm_marketing/utils"
)

// EmailSender 邮件发送接口，实际投递由外部邮件服务承担
type EmailSender interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// LogEmailSender 仅记录日志的发送实现
// 未接入邮件服务商时的默认实现，发送一律视为成功
type LogEmailSender struct{}

// Send 记录发送日志
func (LogEmailSender) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	utils.Logger.Info().
		Str("to", toEmail).
		Str("name", toName).
		Str("subject", subject).
		Int("bodyLength", len(htmlBody)).
		Msg("模拟发送邮件")
	return nil
}

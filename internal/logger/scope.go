package logger

import (
	"go.uber.org/zap"

	"notika/backend/internal/domain"
)

// MessageScopeInput 邮件操作日志上下文
type MessageScopeInput struct {
	SenderEmail   string
	ReceiverEmail string
	CategoryName  string
	IsRead        bool
	IsDraft       bool
	IsDeleted     bool
}

// MessageScope 返回邮件操作的结构化日志字段
func MessageScope(in MessageScopeInput) []zap.Field {
	category := in.CategoryName
	if category == "" {
		category = domain.UncategorizedName
	}

	return []zap.Field{
		zap.String("operation_type", "Message"),
		zap.String("sender_email", in.SenderEmail),
		zap.String("receiver_email", in.ReceiverEmail),
		zap.String("category", category),
		zap.String("message_status", string(domain.DeriveStatus(in.IsRead, in.IsDraft, in.IsDeleted))),
	}
}

// MessageScopeOf 根据邮件实体构造日志字段
func MessageScopeOf(m *domain.Message, categoryName string) []zap.Field {
	return MessageScope(MessageScopeInput{
		SenderEmail:   m.SenderEmail,
		ReceiverEmail: m.ReceiverEmail,
		CategoryName:  categoryName,
		IsRead:        m.IsRead,
		IsDraft:       m.IsDraft,
		IsDeleted:     m.IsDeleted,
	})
}

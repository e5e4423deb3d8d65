package domain

import (
	"strings"
	"time"
)

// 默认显示值（联表缺失时的回退）
const (
	UnknownSenderName    = "Bilinmeyen"
	UnknownSenderSurname = "Kullanıcı"
	UncategorizedName    = "Kategori Yok"
)

// UncategorizedID 未分类消息的分类 ID
const UncategorizedID uint = 0

// Message 表示用户之间的一条站内消息。
//
// 消息状态由 IsDraft / IsDeleted 两个标志推导，而不是单独的枚举：
// 删除后的消息保留 IsDraft 的原值用于审计，但不再出现在任何活动视图中。
type Message struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	SenderEmail   string     `json:"senderEmail" gorm:"type:varchar(255);index;not null"`
	ReceiverEmail string     `json:"receiverEmail" gorm:"type:varchar(255);index"`
	Subject       string     `json:"subject" gorm:"type:varchar(150)"`
	Body          string     `json:"body" gorm:"type:text"`
	SendDate      time.Time  `json:"sendDate" gorm:"index"`
	CategoryID    uint       `json:"categoryId" gorm:"index;default:0"`
	IsRead        bool       `json:"isRead" gorm:"default:false;index"`
	IsDraft       bool       `json:"isDraft" gorm:"default:false;index"`
	IsDeleted     bool       `json:"isDeleted" gorm:"default:false;index"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// IsActive 既不是草稿也未被删除
func (m *Message) IsActive() bool {
	return !m.IsDraft && !m.IsDeleted
}

// IsParticipant 判断用户是否为消息的发送方或接收方
func (m *Message) IsParticipant(email string) bool {
	return m.IsSender(email) || m.IsReceiver(email)
}

// IsSender 判断用户是否为发送方
func (m *Message) IsSender(email string) bool {
	return email != "" && strings.EqualFold(m.SenderEmail, email)
}

// IsReceiver 判断用户是否为接收方
func (m *Message) IsReceiver(email string) bool {
	return email != "" && strings.EqualFold(m.ReceiverEmail, email)
}

// Status 按 Trashed > Draft > Read > Unread 的优先级推导消息状态
func (m *Message) Status() MessageStatus {
	return DeriveStatus(m.IsRead, m.IsDraft, m.IsDeleted)
}

// MessageStatus 消息的派生状态，仅用于日志与通知上下文，不落库
type MessageStatus string

const (
	StatusTrashed MessageStatus = "Çöp"
	StatusDraft   MessageStatus = "Taslak"
	StatusRead    MessageStatus = "Okundu"
	StatusUnread  MessageStatus = "Okunmadı"
)

// DeriveStatus 根据三个标志位推导状态
func DeriveStatus(isRead, isDraft, isDeleted bool) MessageStatus {
	switch {
	case isDeleted:
		return StatusTrashed
	case isDraft:
		return StatusDraft
	case isRead:
		return StatusRead
	default:
		return StatusUnread
	}
}

// MessageView 邮箱列表与详情使用的投影，附带双方姓名与分类名
type MessageView struct {
	Message
	SenderName      string `json:"senderName"`
	SenderSurname   string `json:"senderSurname"`
	SenderImageURL  string `json:"senderImageUrl,omitempty"`
	ReceiverName    string `json:"receiverName"`
	ReceiverSurname string `json:"receiverSurname"`
	CategoryName    string `json:"categoryName"`
}

// ApplyFallbacks 为缺失的联表字段填充默认显示值
func (v *MessageView) ApplyFallbacks() {
	if v.SenderName == "" {
		v.SenderName = UnknownSenderName
	}
	if v.SenderSurname == "" {
		v.SenderSurname = UnknownSenderSurname
	}
	if v.ReceiverName == "" {
		v.ReceiverName = UnknownSenderName
	}
	if v.ReceiverSurname == "" {
		v.ReceiverSurname = UnknownSenderSurname
	}
	if v.CategoryName == "" {
		v.CategoryName = UncategorizedName
	}
}

// SenderFullName 发送方全名
func (v *MessageView) SenderFullName() string {
	return strings.TrimSpace(v.SenderName + " " + v.SenderSurname)
}

// DraftModel 回复/转发时预填充的写信模型
type DraftModel struct {
	ReceiverEmail string `json:"receiverEmail"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	CategoryID    uint   `json:"categoryId"`
}

// ComposeInput 写信输入
type ComposeInput struct {
	SenderEmail   string
	ReceiverEmail string
	Subject       string
	Body          string
	CategoryID    uint
	IsDraft       bool
}

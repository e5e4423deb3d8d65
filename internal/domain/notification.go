package domain

import (
	"errors"
	"time"
)

// DefaultNotificationTitle 未指定标题时使用的默认值
const DefaultNotificationTitle = "Sistem Bildirimi"

// ErrNotificationRecipient 通知既没有接收人也没有接收角色
var ErrNotificationRecipient = errors.New("notification requires a recipient email or role")

// Notification 站内通知。RecipientEmail 与 RecipientRole 至少设置一个。
type Notification struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title          string    `json:"title" gorm:"type:varchar(200);not null"`
	Detail         string    `json:"detail" gorm:"type:text"`
	ImageURL       string    `json:"imageUrl,omitempty" gorm:"type:varchar(500)"`
	RecipientEmail string    `json:"recipientEmail,omitempty" gorm:"type:varchar(255);index"`
	RecipientRole  Role      `json:"recipientRole,omitempty" gorm:"type:varchar(20);index"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
	IsRead         bool      `json:"isRead" gorm:"default:false;index"`
}

// Validate 校验接收方
func (n *Notification) Validate() error {
	if n.RecipientEmail == "" && n.RecipientRole == "" {
		return ErrNotificationRecipient
	}
	if n.Title == "" {
		n.Title = DefaultNotificationTitle
	}
	return nil
}

// AddressedTo 判断通知是否发给指定用户（直接或通过角色广播）
func (n *Notification) AddressedTo(email string, roles []Role) bool {
	if n.RecipientEmail != "" && equalFoldEmail(n.RecipientEmail, email) {
		return true
	}
	if n.RecipientRole != "" {
		for _, r := range roles {
			if r == n.RecipientRole {
				return true
			}
		}
	}
	return false
}

// NotificationQuery 通知查询条件
type NotificationQuery struct {
	Email      string
	Roles      []Role
	UnreadOnly bool
	Limit      int
}

package domain

// Folder 邮箱视图
type Folder string

const (
	FolderInbox   Folder = "inbox"
	FolderSendbox Folder = "sendbox"
	FolderDrafts  Folder = "drafts"
	FolderTrash   Folder = "trash"
)

// MailboxQuery 邮箱视图查询条件
//
// Owner 为当前用户邮箱；Search 非空时在该视图的搜索字段上做不区分大小写的
// 子串匹配（字段之间为 OR 关系）。
type MailboxQuery struct {
	Folder     Folder
	Owner      string
	Search     string
	CategoryID *uint
	Limit      int
}

// Matches 判断消息是否属于该视图（不含搜索条件）
func (q MailboxQuery) Matches(m *Message) bool {
	if q.CategoryID != nil && m.CategoryID != *q.CategoryID {
		return false
	}

	switch q.Folder {
	case FolderInbox:
		return m.IsReceiver(q.Owner) && m.IsActive()
	case FolderSendbox:
		return m.IsSender(q.Owner) && m.IsActive()
	case FolderDrafts:
		return m.IsSender(q.Owner) && m.IsDraft && !m.IsDeleted
	case FolderTrash:
		return m.IsDeleted && m.IsParticipant(q.Owner)
	default:
		return false
	}
}

// SearchFields 返回该视图参与搜索的字段值
func (q MailboxQuery) SearchFields(v *MessageView) []string {
	switch q.Folder {
	case FolderInbox:
		return []string{v.Subject, v.Body, v.SenderEmail, v.SenderName, v.SenderSurname}
	case FolderSendbox, FolderDrafts:
		return []string{v.Subject, v.Body, v.ReceiverEmail, v.ReceiverName, v.ReceiverSurname}
	case FolderTrash:
		return []string{v.Subject, v.SenderEmail, v.ReceiverEmail, v.CategoryName}
	default:
		return nil
	}
}

package domain

import "time"

// CommentStatus 评论状态（三态字符串）
type CommentStatus string

const (
	CommentPending  CommentStatus = "Onay Bekliyor"
	CommentActive   CommentStatus = "Aktif"
	CommentInactive CommentStatus = "Pasif"
)

// UnknownToxicityLabel 审核不可用时写入的标签
const UnknownToxicityLabel = "unknown"

// Comment 用户评论。审核字段始终有确定值，不存在空状态。
type Comment struct {
	ID            uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	Detail        string        `json:"detail" gorm:"type:text;not null"`
	CommentDate   time.Time     `json:"commentDate" gorm:"index"`
	Status        CommentStatus `json:"status" gorm:"type:varchar(20);default:'Onay Bekliyor';index"`
	IsToxic       bool          `json:"isToxic" gorm:"default:false;index"`
	ToxicityScore float64       `json:"toxicityScore" gorm:"default:0"`
	ToxicityLabel string        `json:"toxicityLabel" gorm:"type:varchar(64);default:'unknown'"`
	UserID        string        `json:"userId" gorm:"type:varchar(36);index;not null"`
}

// ApplyVerdict 按审核结论决定评论的初始状态
//
// 明确判定为有害时直接置为 Pasif；判定无害或结论缺失时进入人工审核。
// 本流程从不直接发布为 Aktif。
func (c *Comment) ApplyVerdict(v *ToxicityVerdict) {
	if v == nil {
		c.IsToxic = false
		c.ToxicityScore = 0
		c.ToxicityLabel = UnknownToxicityLabel
		c.Status = CommentPending
		return
	}

	c.IsToxic = v.IsToxic
	c.ToxicityScore = v.Score
	c.ToxicityLabel = v.Label
	if c.ToxicityLabel == "" {
		c.ToxicityLabel = UnknownToxicityLabel
	}

	if v.IsToxic {
		c.Status = CommentInactive
	} else {
		c.Status = CommentPending
	}
}

// ToggledStatus 管理员切换后的状态：Aktif 与 Pasif 互换，待审核视为激活
func (c *Comment) ToggledStatus() CommentStatus {
	if c.Status == CommentActive {
		return CommentInactive
	}
	return CommentActive
}

// CommentView 管理端评论列表投影
type CommentView struct {
	Comment
	AuthorName     string `json:"authorName"`
	AuthorSurname  string `json:"authorSurname"`
	AuthorUsername string `json:"authorUsername"`
	AuthorImageURL string `json:"authorImageUrl,omitempty"`
}

// AuthorComment 作者本人看到的评论，不含审核字段
type AuthorComment struct {
	ID          uint          `json:"id"`
	Detail      string        `json:"detail"`
	CommentDate time.Time     `json:"commentDate"`
	Status      CommentStatus `json:"status"`
}

// ForAuthor 作者视角：因有害被下架的评论仍显示为待审核
func (c *Comment) ForAuthor() AuthorComment {
	status := c.Status
	if status == CommentInactive && c.IsToxic {
		status = CommentPending
	}
	return AuthorComment{
		ID:          c.ID,
		Detail:      c.Detail,
		CommentDate: c.CommentDate,
		Status:      status,
	}
}

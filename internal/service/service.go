package service

import (
	"errors"
	"strings"
	"time"

	"notika/backend/internal/domain"
	"notika/backend/internal/notify"
)

// ErrTooManyComments 评论提交过于频繁
var ErrTooManyComments = errors.New("too many comments")

// Sanitizer HTML 清洗
type Sanitizer interface {
	Sanitize(raw string) string
}

// EventSink 出站事件队列（提交之后再入队）
type EventSink interface {
	Enqueue(events ...notify.Event)
}

// Recorder 业务指标
type Recorder interface {
	RecordMessageEvent(kind string)
	RecordNotificationCreated()
	RecordCommentCreated(status string)
}

// 邮件生命周期指标类别
const (
	MessageEventSent    = "sent"
	MessageEventDraft   = "draft"
	MessageEventRead    = "read"
	MessageEventTrashed = "trashed"
)

type nopRecorder struct{}

func (nopRecorder) RecordMessageEvent(string)   {}
func (nopRecorder) RecordNotificationCreated()  {}
func (nopRecorder) RecordCommentCreated(string) {}

type nopSink struct{}

func (nopSink) Enqueue(...notify.Event) {}

// 通知里展示的时间格式
const displayTimeLayout = "02.01.2006 15:04"

func formatDisplayTime(t time.Time) string {
	return t.Format(displayTimeLayout)
}

// displayName 有全名用全名，否则用邮箱
func displayName(user *domain.User, email string) string {
	if user != nil {
		if name := user.FullName(); name != "" {
			return name
		}
	}
	return email
}

func imageOf(user *domain.User) string {
	if user == nil {
		return ""
	}
	return user.ImageURL
}

func normalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notika/backend/internal/domain"
	"notika/backend/internal/notify"
	"notika/backend/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// recordingSink 记录入队的事件
type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Enqueue(events ...notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *recordingSink) named(name string) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []notify.Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// countingRecorder 记录指标调用次数
type countingRecorder struct {
	mu            sync.Mutex
	messages      map[string]int
	notifications int
	comments      map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{messages: map[string]int{}, comments: map[string]int{}}
}

func (r *countingRecorder) RecordMessageEvent(kind string) {
	r.mu.Lock()
	r.messages[kind]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordNotificationCreated() {
	r.mu.Lock()
	r.notifications++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordCommentCreated(status string) {
	r.mu.Lock()
	r.comments[status]++
	r.mu.Unlock()
}

// stripScripts 简化的清洗器：去掉 script 标签
type stripScripts struct{}

func (stripScripts) Sanitize(raw string) string {
	return strings.ReplaceAll(raw, "<script>alert(1)</script>", "")
}

func seedUsers(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	users := []*domain.User{
		{ID: "u-alice", Name: "Alice", Surname: "Yılmaz", Username: "alice", Email: "alice@notika.com", ImageURL: "/img/alice.png", Roles: domain.Roles{domain.RoleUser}, IsActive: true},
		{ID: "u-bob", Name: "Bob", Surname: "Kaya", Username: "bob", Email: "bob@notika.com", Roles: domain.Roles{domain.RoleUser}, IsActive: true},
		{ID: "u-carol", Name: "Carol", Surname: "Demir", Username: "carol", Email: "carol@notika.com", Roles: domain.Roles{domain.RoleUser}, IsActive: true},
		{ID: "u-admin", Name: "Ada", Surname: "Admin", Username: "admin", Email: "admin@notika.com", Roles: domain.Roles{domain.RoleAdmin}, IsActive: true},
	}
	for _, u := range users {
		require.NoError(t, store.CreateUser(ctx, u))
	}
}

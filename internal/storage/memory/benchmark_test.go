package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"notika/backend/internal/domain"
)

func BenchmarkMemoryStore_CreateMessage(b *testing.B) {
	store := NewStore()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.CreateMessage(ctx, &domain.Message{
			SenderEmail:   "a@notika.dev",
			ReceiverEmail: fmt.Sprintf("user%d@notika.dev", i%100),
			Subject:       "bench",
			SendDate:      time.Now(),
		})
	}
}

func BenchmarkMemoryStore_ListInboxWithSearch(b *testing.B) {
	store := NewStore()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		store.CreateMessage(ctx, &domain.Message{
			SenderEmail:   fmt.Sprintf("sender%d@notika.dev", i%10),
			ReceiverEmail: "inbox@notika.dev",
			Subject:       fmt.Sprintf("rapor %d", i),
			Body:          "haftalık özet",
			SendDate:      time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	query := domain.MailboxQuery{Folder: domain.FolderInbox, Owner: "inbox@notika.dev", Search: "RAPOR 9"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.ListMailbox(ctx, query)
	}
}

func BenchmarkMemoryStore_MarkMessageRead(b *testing.B) {
	store := NewStore()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		store.CreateMessage(ctx, &domain.Message{
			SenderEmail:   "a@notika.dev",
			ReceiverEmail: "b@notika.dev",
			SendDate:      time.Now(),
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.MarkMessageRead(ctx, uint(i%1000)+1, "b@notika.dev")
	}
}

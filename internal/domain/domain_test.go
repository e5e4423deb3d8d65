package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name                      string
		isRead, isDraft, isDelete bool
		expected                  MessageStatus
	}{
		{"未读", false, false, false, StatusUnread},
		{"已读", true, false, false, StatusRead},
		{"草稿优先于已读", true, true, false, StatusDraft},
		{"删除优先于一切", true, true, true, StatusTrashed},
		{"删除的未读消息", false, false, true, StatusTrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.isRead, tt.isDraft, tt.isDelete))
		})
	}
}

func TestResolveDestination(t *testing.T) {
	assert.Equal(t, DestinationAdminDashboard, ResolveDestination([]Role{RoleUser, RoleAdmin}))
	assert.Equal(t, DestinationUserInbox, ResolveDestination([]Role{RoleUser}))
	assert.Equal(t, DestinationNone, ResolveDestination(nil))
	assert.Equal(t, DestinationNone, ResolveDestination([]Role{"Guest"}))

	text, err := DestinationUserInbox.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "user_inbox", string(text))
}

func TestCommentVerdict(t *testing.T) {
	t.Run("审核不可用时进入待审核", func(t *testing.T) {
		c := &Comment{}
		c.ApplyVerdict(nil)
		assert.Equal(t, CommentPending, c.Status)
		assert.Equal(t, UnknownToxicityLabel, c.ToxicityLabel)
		assert.False(t, c.IsToxic)
		assert.Zero(t, c.ToxicityScore)
	})

	t.Run("有害直接下架", func(t *testing.T) {
		c := &Comment{}
		c.ApplyVerdict(&ToxicityVerdict{Label: "Hakaret", Score: 0.91, IsToxic: true})
		assert.Equal(t, CommentInactive, c.Status)
		assert.Equal(t, "Hakaret", c.ToxicityLabel)
		assert.InDelta(t, 0.91, c.ToxicityScore, 1e-9)
	})

	t.Run("无害也不会直接发布", func(t *testing.T) {
		c := &Comment{}
		c.ApplyVerdict(&ToxicityVerdict{Label: "Zararsız İçerik", Score: 0.02})
		assert.Equal(t, CommentPending, c.Status)
	})

	t.Run("管理员切换", func(t *testing.T) {
		assert.Equal(t, CommentActive, (&Comment{Status: CommentPending}).ToggledStatus())
		assert.Equal(t, CommentInactive, (&Comment{Status: CommentActive}).ToggledStatus())
		assert.Equal(t, CommentActive, (&Comment{Status: CommentInactive}).ToggledStatus())
	})
}

func TestNotificationAddressing(t *testing.T) {
	direct := &Notification{Title: "Yeni Mesaj", RecipientEmail: "bob@notika.com"}
	broadcast := &Notification{Title: "Yeni Mesaj Trafiği", RecipientRole: RoleAdmin}

	assert.NoError(t, direct.Validate())
	assert.ErrorIs(t, (&Notification{Title: "x"}).Validate(), ErrNotificationRecipient)

	assert.True(t, direct.AddressedTo("BOB@notika.com", nil))
	assert.False(t, direct.AddressedTo("carol@notika.com", []Role{RoleAdmin}))
	assert.True(t, broadcast.AddressedTo("carol@notika.com", []Role{RoleAdmin}))
	assert.False(t, broadcast.AddressedTo("carol@notika.com", []Role{RoleUser}))
}

func TestRolesColumn(t *testing.T) {
	raw, err := Roles{RoleAdmin, RoleUser}.Value()
	require.NoError(t, err)
	assert.Equal(t, "Admin,User", raw)

	var roles Roles
	require.NoError(t, roles.Scan([]byte("Admin, User,")))
	assert.Equal(t, Roles{RoleAdmin, RoleUser}, roles)

	require.NoError(t, roles.Scan(nil))
	assert.Nil(t, roles)
	assert.Error(t, roles.Scan(42))
}

func TestMailboxQueryMatches(t *testing.T) {
	sent := &Message{SenderEmail: "alice@notika.com", ReceiverEmail: "bob@notika.com"}
	draft := &Message{SenderEmail: "alice@notika.com", IsDraft: true}
	trashed := &Message{SenderEmail: "alice@notika.com", ReceiverEmail: "bob@notika.com", IsDeleted: true}
	trashedDraft := &Message{SenderEmail: "alice@notika.com", IsDraft: true, IsDeleted: true}

	inbox := MailboxQuery{Folder: FolderInbox, Owner: "bob@notika.com"}
	sendbox := MailboxQuery{Folder: FolderSendbox, Owner: "alice@notika.com"}
	drafts := MailboxQuery{Folder: FolderDrafts, Owner: "alice@notika.com"}
	trash := MailboxQuery{Folder: FolderTrash, Owner: "bob@notika.com"}

	assert.True(t, inbox.Matches(sent))
	assert.False(t, inbox.Matches(trashed))
	assert.True(t, sendbox.Matches(sent))
	assert.False(t, sendbox.Matches(draft))
	assert.True(t, drafts.Matches(draft))
	assert.False(t, drafts.Matches(trashedDraft))
	assert.True(t, trash.Matches(trashed))
	assert.False(t, trash.Matches(sent))

	category := uint(3)
	assert.False(t, MailboxQuery{Folder: FolderInbox, Owner: "bob@notika.com", CategoryID: &category}.Matches(sent))
}

func TestMessageViewFallbacks(t *testing.T) {
	v := &MessageView{SenderName: "Alice"}
	v.ApplyFallbacks()

	assert.Equal(t, "Alice", v.SenderName)
	assert.Equal(t, UnknownSenderSurname, v.SenderSurname)
	assert.Equal(t, UnknownSenderName, v.ReceiverName)
	assert.Equal(t, UncategorizedName, v.CategoryName)
	assert.Equal(t, "Alice Kullanıcı", v.SenderFullName())
}

func TestUserGroups(t *testing.T) {
	admin := &User{Email: "Admin@Notika.com", Roles: Roles{RoleAdmin}}
	assert.Equal(t, []string{"admin@notika.com", AdminsGroup}, admin.Groups())

	user := &User{Email: "bob@notika.com", Roles: Roles{RoleUser}}
	assert.Equal(t, []string{"bob@notika.com"}, user.Groups())
}

package postgres

import (
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notika/backend/internal/domain"
)

func TestFolderCondition(t *testing.T) {
	t.Run("收件箱只看接收方的活动邮件", func(t *testing.T) {
		cond, err := folderCondition(domain.MailboxQuery{Folder: domain.FolderInbox, Owner: "Bob@Notika.com"})
		require.NoError(t, err)

		sql, args, err := cond.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "m.receiver_email = ?")
		assert.Contains(t, sql, "m.is_draft = ?")
		assert.Contains(t, sql, "m.is_deleted = ?")
		assert.Contains(t, args, "bob@notika.com")
		assert.NotContains(t, sql, "sender_email")
	})

	t.Run("垃圾箱包含双方", func(t *testing.T) {
		cond, err := folderCondition(domain.MailboxQuery{Folder: domain.FolderTrash, Owner: "bob@notika.com"})
		require.NoError(t, err)

		sql, args, err := cond.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "m.sender_email = ? OR m.receiver_email = ?")
		assert.Equal(t, []interface{}{true, "bob@notika.com", "bob@notika.com"}, args)
	})

	t.Run("未知视图", func(t *testing.T) {
		_, err := folderCondition(domain.MailboxQuery{Folder: "spam"})
		assert.Error(t, err)
	})
}

func TestSearchCondition(t *testing.T) {
	sql, args, err := searchCondition(domain.FolderSendbox, "rapor").ToSql()
	require.NoError(t, err)

	assert.Equal(t, 5, strings.Count(sql, "LIKE ?"))
	assert.Contains(t, sql, "LOWER(r.surname) LIKE ?")
	assert.NotContains(t, sql, "s.name")
	for _, arg := range args {
		assert.Equal(t, "%rapor%", arg)
	}

	sql, _, err = searchCondition(domain.FolderTrash, "iş").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LOWER(COALESCE(c.name, '')) LIKE ?")
	assert.NotContains(t, sql, domain.UncategorizedName)
	assert.NotContains(t, sql, "m.body")

	t.Run("转义 LIKE 通配符", func(t *testing.T) {
		_, args, err := searchCondition(domain.FolderInbox, `50%_indirim\`).ToSql()
		require.NoError(t, err)
		require.NotEmpty(t, args)
		for _, arg := range args {
			assert.Equal(t, `%50\%\_indirim\\%`, arg)
		}
	})
}

func TestMessageViewSelect(t *testing.T) {
	sql, args, err := messageViewSelect().Where(sq.Eq{"m.category_id": uint(3)}).Limit(5).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "LEFT JOIN users s ON s.email = m.sender_email")
	assert.Contains(t, sql, "LEFT JOIN categories c ON c.id = m.category_id")
	assert.Contains(t, sql, "ORDER BY m.send_date DESC, m.id DESC")
	assert.Contains(t, sql, "LIMIT 5")
	assert.Equal(t, []interface{}{uint(3)}, args)
}

func TestNormalizeMySQLDSN(t *testing.T) {
	t.Run("补全 parseTime 与字符集", func(t *testing.T) {
		dsn, err := NormalizeMySQLDSN("notika:secret@tcp(localhost:3306)/notika")
		require.NoError(t, err)
		assert.Contains(t, dsn, "parseTime=true")
		assert.Contains(t, dsn, "charset=utf8mb4")
	})

	t.Run("保留已有字符集", func(t *testing.T) {
		dsn, err := NormalizeMySQLDSN("notika:secret@tcp(localhost:3306)/notika?charset=latin1")
		require.NoError(t, err)
		assert.Contains(t, dsn, "charset=latin1")
	})

	t.Run("无效 DSN", func(t *testing.T) {
		_, err := NormalizeMySQLDSN("not a dsn")
		assert.Error(t, err)
	})
}

package postgres

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"notika/backend/internal/domain"
)

// 未分类消息显示的分类名
var categoryNameExpr = fmt.Sprintf("COALESCE(c.name, '%s')", domain.UncategorizedName)

// messageViewSelect 邮件投影：联表取发件人、收件人与分类名
func messageViewSelect() sq.SelectBuilder {
	return sq.Select(
		"m.*",
		"COALESCE(s.name, '') AS sender_name",
		"COALESCE(s.surname, '') AS sender_surname",
		"COALESCE(s.image_url, '') AS sender_image_url",
		"COALESCE(r.name, '') AS receiver_name",
		"COALESCE(r.surname, '') AS receiver_surname",
		"COALESCE(c.name, '') AS category_name",
	).
		From("messages m").
		LeftJoin("users s ON s.email = m.sender_email").
		LeftJoin("users r ON r.email = m.receiver_email").
		LeftJoin("categories c ON c.id = m.category_id").
		OrderBy("m.send_date DESC", "m.id DESC")
}

// folderCondition 各视图的归属与状态条件
func folderCondition(q domain.MailboxQuery) (sq.Sqlizer, error) {
	owner := domain.NormalizeEmail(q.Owner)

	switch q.Folder {
	case domain.FolderInbox:
		return sq.Eq{"m.receiver_email": owner, "m.is_draft": false, "m.is_deleted": false}, nil
	case domain.FolderSendbox:
		return sq.Eq{"m.sender_email": owner, "m.is_draft": false, "m.is_deleted": false}, nil
	case domain.FolderDrafts:
		return sq.Eq{"m.sender_email": owner, "m.is_draft": true, "m.is_deleted": false}, nil
	case domain.FolderTrash:
		return sq.And{
			sq.Eq{"m.is_deleted": true},
			sq.Or{sq.Eq{"m.sender_email": owner}, sq.Eq{"m.receiver_email": owner}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown folder %q", q.Folder)
	}
}

// searchColumns 与 domain.MailboxQuery.SearchFields 保持一致
func searchColumns(folder domain.Folder) []string {
	switch folder {
	case domain.FolderInbox:
		return []string{"m.subject", "m.body", "m.sender_email", "s.name", "s.surname"}
	case domain.FolderSendbox, domain.FolderDrafts:
		return []string{"m.subject", "m.body", "m.receiver_email", "r.name", "r.surname"}
	case domain.FolderTrash:
		return []string{"m.subject", "m.sender_email", "m.receiver_email", "COALESCE(c.name, '')"}
	default:
		return nil
	}
}

// likeEscaper 转义 LIKE 通配符，postgres 与 mysql 默认转义符均为反斜杠
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// searchCondition 任一字段包含关键字（不区分大小写）
//
// 与内存实现一致，只匹配实际存储的值，不匹配 Bilinmeyen 等默认显示值。
func searchCondition(folder domain.Folder, needle string) sq.Sqlizer {
	pattern := "%" + likeEscaper.Replace(needle) + "%"
	or := sq.Or{}
	for _, col := range searchColumns(folder) {
		or = append(or, sq.Like{"LOWER(" + col + ")": pattern})
	}
	return or
}

package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// 账号相关的校验错误
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrPasswordTooShort = errors.New("password too short (min 8 chars)")
	ErrPasswordTooLong  = errors.New("password too long (max 72 chars)")
	ErrUsernameTooShort = errors.New("username too short (min 3 chars)")
	ErrUsernameTooLong  = errors.New("username too long (max 32 chars)")
	ErrInvalidUsername  = errors.New("invalid username format")
)

// 校验常量
const (
	MaxEmailLength = 254

	MaxSubjectLength      = 150
	MaxBodyLength         = 5000
	MaxCommentLength      = 2000
	MaxCategoryNameLength = 100

	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt 上限

	MinUsernameLength = 3
	MaxUsernameLength = 32
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*[a-zA-Z0-9]$|^[a-zA-Z]$`)

// ValidateEmail 校验邮箱格式
func ValidateEmail(email string) bool {
	if email == "" || len(email) > MaxEmailLength {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}

	for _, r := range parts[0] {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' || r == '+') {
			return false
		}
	}

	if !strings.Contains(parts[1], ".") {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// NormalizeEmail 统一邮箱大小写与空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCompose 校验写信输入的长度与收件人格式
//
// 收件人是否存在由消息服务在非草稿发送时另行检查。
func ValidateCompose(input ComposeInput) error {
	if utf8.RuneCountInString(input.Subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	if utf8.RuneCountInString(input.Body) > MaxBodyLength {
		return ErrBodyTooLong
	}

	receiver := strings.TrimSpace(input.ReceiverEmail)
	if receiver == "" {
		if input.IsDraft {
			return nil
		}
		return ErrReceiverRequired
	}
	if !ValidateEmail(receiver) {
		return ErrInvalidReceiver
	}
	return nil
}

// ValidateCommentDetail 校验评论内容
func ValidateCommentDetail(detail string) error {
	if strings.TrimSpace(detail) == "" {
		return ErrCommentEmpty
	}
	if utf8.RuneCountInString(detail) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// ValidateCategoryName 校验分类名
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrCategoryName
	}
	return nil
}

// ValidatePassword 校验密码长度
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateUsername 校验用户名
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Valid email with numbers", "user123@example.com", true},
		{"Valid email with dots", "user.name@example.com", true},
		{"Valid email with plus", "user+tag@example.com", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - multiple @", "test@@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid email - spaces", "test @example.com", false},
		{"Invalid email - invalid characters", "test$@example.com", false},
		{"Invalid email - no dot in domain", "test@localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateEmail(tt.email))
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected error
	}{
		{"Valid username", "testuser", nil},
		{"Valid username with numbers", "user123", nil},
		{"Valid username with underscore", "test_user", nil},
		{"Valid username with dash", "test-user", nil},
		{"Valid minimum length", "abc", nil},
		{"Valid maximum length", "abcdefghijklmnopqrstuvwxyz123456", nil},
		{"Invalid - too short", "ab", ErrUsernameTooShort},
		{"Invalid - too long", "abcdefghijklmnopqrstuvwxyz1234567", ErrUsernameTooLong},
		{"Invalid - spaces", "test user", ErrInvalidUsername},
		{"Invalid - special characters", "test@user", ErrInvalidUsername},
		{"Invalid - starts with number", "123user", ErrInvalidUsername},
		{"Invalid - starts with dash", "-testuser", ErrInvalidUsername},
		{"Invalid - ends with dash", "testuser-", ErrInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateUsername(tt.username))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		expected error
	}{
		{"Valid password", "Password123!", nil},
		{"Valid password - minimum length", "12345678", nil},
		{"Valid password - maximum length", strings.Repeat("x", MaxPasswordLength), nil},
		{"Invalid - too short", "Pass1!", ErrPasswordTooShort},
		{"Invalid - empty", "", ErrPasswordTooShort},
		{"Invalid - too long", strings.Repeat("x", MaxPasswordLength+1), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidatePassword(tt.password))
		})
	}
}

func TestValidateCompose(t *testing.T) {
	tests := []struct {
		name     string
		input    ComposeInput
		expected error
	}{
		{"发送", ComposeInput{ReceiverEmail: "bob@notika.com", Subject: "Merhaba"}, nil},
		{"主题恰好 150 字符", ComposeInput{ReceiverEmail: "bob@notika.com", Subject: strings.Repeat("ş", MaxSubjectLength)}, nil},
		{"主题过长", ComposeInput{ReceiverEmail: "bob@notika.com", Subject: strings.Repeat("a", MaxSubjectLength+1)}, ErrSubjectTooLong},
		{"正文过长", ComposeInput{ReceiverEmail: "bob@notika.com", Body: strings.Repeat("a", MaxBodyLength+1)}, ErrBodyTooLong},
		{"发送时缺少收件人", ComposeInput{Subject: "Merhaba"}, ErrReceiverRequired},
		{"草稿可以没有收件人", ComposeInput{Subject: "Taslak", IsDraft: true}, nil},
		{"草稿收件人格式仍然校验", ComposeInput{ReceiverEmail: "bob", IsDraft: true}, ErrInvalidReceiver},
		{"收件人格式错误", ComposeInput{ReceiverEmail: "bob@"}, ErrInvalidReceiver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompose(tt.input)
			assert.Equal(t, tt.expected, err)
			if err != nil {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestValidateCommentAndCategory(t *testing.T) {
	t.Run("评论内容", func(t *testing.T) {
		assert.NoError(t, ValidateCommentDetail("Güzel bir uygulama"))
		assert.Equal(t, ErrCommentEmpty, ValidateCommentDetail("  \n "))
		assert.Equal(t, ErrCommentTooLong, ValidateCommentDetail(strings.Repeat("a", MaxCommentLength+1)))
	})

	t.Run("分类名", func(t *testing.T) {
		assert.NoError(t, ValidateCategoryName("İş"))
		assert.Equal(t, ErrCategoryName, ValidateCategoryName(" "))
		assert.Equal(t, ErrCategoryName, ValidateCategoryName(strings.Repeat("a", MaxCategoryNameLength+1)))
	})

	t.Run("NormalizeEmail", func(t *testing.T) {
		assert.Equal(t, "bob@notika.com", NormalizeEmail("  Bob@Notika.COM "))
	})
}

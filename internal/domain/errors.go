package domain

import "errors"

// 业务错误分类
var (
	// ErrNotFound 资源不存在，或调用方不是消息的参与方（两者对外不可区分）
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized 无法识别调用方身份
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation 输入校验失败，未做任何持久化
	ErrValidation = errors.New("validation failed")
	// ErrEmailExists 注册时邮箱已被占用
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists 注册时用户名已被占用
	ErrUsernameExists = errors.New("username already exists")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// 写信校验错误，均包裹 ErrValidation
var (
	ErrReceiverNotFound = &ValidationError{Field: "receiverEmail", Reason: "receiver not found"}
	ErrReceiverRequired = &ValidationError{Field: "receiverEmail", Reason: "receiver is required"}
	ErrInvalidReceiver  = &ValidationError{Field: "receiverEmail", Reason: "invalid receiver email"}
	ErrSubjectTooLong   = &ValidationError{Field: "subject", Reason: "subject too long"}
	ErrBodyTooLong      = &ValidationError{Field: "body", Reason: "body too long"}
	ErrCommentEmpty     = &ValidationError{Field: "detail", Reason: "comment is empty"}
	ErrCommentTooLong   = &ValidationError{Field: "detail", Reason: "comment too long"}
	ErrCategoryName     = &ValidationError{Field: "name", Reason: "invalid category name"}
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Unwrap 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

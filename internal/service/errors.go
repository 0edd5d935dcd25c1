package service

import (
	"errors"
	"fmt"
)

// 分享与公开链接的业务错误。存储层故障只会被 %w 包装，不会匹配这些值。
var (
	ErrValidation        = errors.New("validation failed")
	ErrSelfShare         = errors.New("cannot share with yourself")
	ErrUserNotFound      = errors.New("target user does not exist")
	ErrPathNotAllowed    = errors.New("path is not shareable")
	ErrNotOwner          = errors.New("only the owner can modify this resource")
	ErrNotFound          = errors.New("resource not found")
	ErrPasswordRequired  = errors.New("password required")
	ErrPasswordIncorrect = errors.New("password incorrect")
	ErrLoginRequired     = errors.New("login required")
	ErrLinkExpired       = errors.New("link expired")
	ErrLinkExhausted     = errors.New("link access limit reached")
)

// ValidationError 输入格式错误，errors.Is(err, ErrValidation) 为 true
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

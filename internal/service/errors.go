package service

import "errors"

// 业务层通用错误,调用方用 errors.Is 判断并映射为对应的应答信封。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrRequestNotPending  = errors.New("friend request is not pending")
)

package repository

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一键冲突（幂等写入被忽略）
	ErrDuplicate = errors.New("duplicate record")
)

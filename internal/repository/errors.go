// Package repository 提供了数据访问层的实现。
package repository

import "errors"

// 仓储层的领域错误。底层驱动错误在边界处被翻译成这些哨兵错误，调用方使用 errors.Is 判断。
var (
	// ErrNotFound 表示会话（或其他记录）不存在。
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition 表示会话当前状态不允许该操作，通常意味着并发竞争或读到了旧状态。
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrConflictActiveSession 表示用户已经有一个进行中的会话。
	ErrConflictActiveSession = errors.New("user already has an active session")
	// ErrOrdinalMismatch 表示会话当前题号与预期不符，即该题已经被作答过（重复投递）。
	ErrOrdinalMismatch = errors.New("session ordinal does not match")
	// ErrDuplicate 表示追加写入的记录已存在（例如同一题的第二条作答）。
	ErrDuplicate = errors.New("record already exists")
)

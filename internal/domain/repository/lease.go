// Package repository 定义领域仓储接口
package repository

import "context"

// BookLease 书籍级单写者租约
// 写路径遵循 获取-校验-变更-释放 模式，租约不得跨外部调用持有。
type BookLease interface {
	// Acquire 获取书籍租约，成功时返回释放函数。
	// 等待超时返回 ErrBookBusy。释放函数可重复调用，仅首次生效。
	Acquire(ctx context.Context, bookID string) (release func(), err error)
}

// Package lifecycle 提供章节状态机管理
package lifecycle

import (
	"context"
	"sync"
	"time"

	apperrors "storytune-api/pkg/errors"
)

// LocalBookLease 进程内书籍租约
// 单实例部署与测试用；多实例部署使用 Redis 租约。
type LocalBookLease struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

// NewLocalBookLease 创建进程内租约
func NewLocalBookLease(wait time.Duration) *LocalBookLease {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &LocalBookLease{
		held: make(map[string]chan struct{}),
		wait: wait,
	}
}

// Acquire 获取书籍租约
func (l *LocalBookLease) Acquire(ctx context.Context, bookID string) (func(), error) {
	deadline := time.Now().Add(l.wait)

	for {
		l.mu.Lock()
		holder, busy := l.held[bookID]
		if !busy {
			done := make(chan struct{})
			l.held[bookID] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, bookID)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, apperrors.ErrBookBusy.WithDetail("book " + bookID + " is being written by another request")
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.ErrBookBusy.WithError(ctx.Err())
		case <-holder:
		case <-time.After(remaining):
		}
	}
}

// Package redis 提供 Redis 缓存、租约和消息队列底层客户端
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
	"storytune-api/pkg/metrics"
)

// releaseScript 仅当持有者令牌匹配时删除租约键，防止释放他人的租约
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BookLease 基于 Redis 的书籍级单写者租约
// SET NX PX 抢占，TTL 防止持有者崩溃后永久占用；释放用 Lua 比较令牌后删除。
type BookLease struct {
	client   *Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

// NewBookLease 创建书籍租约
func NewBookLease(client *Client, ttl, wait time.Duration) *BookLease {
	return &BookLease{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		interval: 50 * time.Millisecond,
	}
}

// Acquire 获取书籍租约
// 在 wait 窗口内轮询抢占；超时返回 ErrBookBusy。
// 返回的释放函数幂等，仅首次调用生效。
func (l *BookLease) Acquire(ctx context.Context, bookID string) (func(), error) {
	ctx, span := tracer.Start(ctx, "redis.BookLease.Acquire",
		trace.WithAttributes(attribute.String("book.id", bookID)))
	defer span.End()

	key := "lease:book:" + bookID
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(l.wait)

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			span.RecordError(err)
			return nil, apperrors.ErrCacheError.WithError(err)
		}
		if ok {
			metrics.LeaseWaitDuration.Observe(time.Since(start).Seconds())
			return l.releaser(key, token), nil
		}

		if time.Now().After(deadline) {
			metrics.LeaseWaitDuration.Observe(time.Since(start).Seconds())
			return nil, apperrors.ErrBookBusy.WithDetail("book " + bookID + " is being written by another request")
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.ErrBookBusy.WithError(ctx.Err())
		case <-time.After(l.interval):
		}
	}
}

// releaser 构造幂等的释放函数
func (l *BookLease) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// 释放使用独立超时上下文：请求取消不应阻止租约归还
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
				logger.Warn(ctx, "failed to release book lease", "key", key, "error", err)
			}
		})
	}
}

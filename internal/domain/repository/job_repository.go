// Package repository 定义领域仓储接口
package repository

import (
	"context"
	"encoding/json"

	"storytune-api/internal/domain/entity"
)

// JobRepository 异步任务仓储接口
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// GetByID 未找到时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	MarkRunning(ctx context.Context, id string) error
	// UpdateProgress 更新执行进度（0-100），仅供轮询展示，不参与状态判断
	UpdateProgress(ctx context.Context, id string, progress int) error
	SetResult(ctx context.Context, id string, result json.RawMessage, errCode, errMsg string) error
	IncrRetry(ctx context.Context, id string) error
}

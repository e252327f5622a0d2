// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storytune-api/internal/domain/entity"
)

// JobRepository 异步任务仓储实现
type JobRepository struct {
	client *Client
}

// NewJobRepository 创建任务仓储
func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

// Create 创建任务记录
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.Job
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// MarkRunning 标记任务开始执行
func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.MarkRunning")
	defer span.End()

	now := time.Now()
	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     entity.JobStatusRunning,
		"started_at": now,
	}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// UpdateProgress 更新任务执行进度
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.UpdateProgress")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Job{}).Where("id = ?", id).
		Update("progress", progress).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// SetResult 落库任务终态：errCode 为空表示成功
func (r *JobRepository) SetResult(ctx context.Context, id string, result json.RawMessage, errCode, errMsg string) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.SetResult")
	defer span.End()

	now := time.Now()
	updates := map[string]interface{}{
		"completed_at": now,
		"progress":     100,
	}
	if errCode == "" {
		updates["status"] = entity.JobStatusCompleted
		updates["output_result"] = result
	} else {
		updates["status"] = entity.JobStatusFailed
		updates["error_code"] = errCode
		updates["error_message"] = errMsg
	}

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Job{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set job result: %w", err)
	}
	return nil
}

// IncrRetry 递增任务重试计数
func (r *JobRepository) IncrRetry(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.IncrRetry")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Job{}).Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to increment job retry count: %w", err)
	}
	return nil
}

// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"storytune-api/internal/domain/entity"
)

// CreateJobRequest 创建异步任务请求
type CreateJobRequest struct {
	Kind        string `json:"job_kind" binding:"required"`
	UserID      string `json:"user_id" binding:"required,max=64"`
	BookID      string `json:"book_id" binding:"required,uuid"`
	ChapterID   string `json:"chapter_id,omitempty" binding:"omitempty,uuid"`
	UserMessage string `json:"user_message,omitempty"`
}

// JobResponse 任务响应
type JobResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	BookID       string          `json:"book_id"`
	ChapterID    string          `json:"chapter_id,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Progress     int             `json:"progress"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ToJobResponse 实体转响应
func ToJobResponse(job *entity.Job) *JobResponse {
	return &JobResponse{
		ID:           job.ID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		BookID:       job.BookID,
		ChapterID:    job.ChapterID,
		Result:       job.OutputResult,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
		Progress:     job.Progress,
		RetryCount:   job.RetryCount,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

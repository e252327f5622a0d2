// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// JobKind 任务类型
type JobKind string

const (
	JobKindGenerateChapter JobKind = "generate_chapter"
	JobKindRecommendMusic  JobKind = "recommend_music"
	JobKindClassifyTurns   JobKind = "classify_turns"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job 异步任务记录
type Job struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       string          `json:"user_id" gorm:"type:varchar(64);index"`
	BookID       string          `json:"book_id" gorm:"type:uuid;index"`
	ChapterID    string          `json:"chapter_id,omitempty" gorm:"type:uuid"`
	Kind         JobKind         `json:"kind" gorm:"type:varchar(32);not null"`
	Status       JobStatus       `json:"status" gorm:"type:varchar(20);default:'pending'"`
	InputParams  json.RawMessage `json:"input_params,omitempty" gorm:"type:jsonb"`
	OutputResult json.RawMessage `json:"output_result,omitempty" gorm:"type:jsonb"`
	ErrorCode    string          `json:"error_code,omitempty" gorm:"type:varchar(16)"`
	ErrorMessage string          `json:"error_message,omitempty" gorm:"type:text"`
	Progress     int             `json:"progress" gorm:"default:0"`
	RetryCount   int             `json:"retry_count" gorm:"default:0"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "jobs"
}

// NewJob 创建新任务
func NewJob(userID, bookID, chapterID string, kind JobKind, input json.RawMessage) *Job {
	now := time.Now()
	return &Job{
		UserID:      userID,
		BookID:      bookID,
		ChapterID:   chapterID,
		Kind:        kind,
		Status:      JobStatusPending,
		InputParams: input,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Start 标记任务开始执行
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 标记任务完成
func (j *Job) Complete(result json.RawMessage) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.OutputResult = result
	j.Progress = 100
	j.CompletedAt = &now
}

// Fail 标记任务失败
func (j *Job) Fail(code, message string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorCode = code
	j.ErrorMessage = message
	j.Progress = 100
	j.CompletedAt = &now
}

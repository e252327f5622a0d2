// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"storytune-api/internal/application/dispatch"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/domain/repository"
	"storytune-api/internal/infrastructure/messaging"
	"storytune-api/internal/infrastructure/persistence/redis"
	"storytune-api/internal/interfaces/http/dto"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
)

// jobCacheTTL 终态任务查询结果的缓存时长
const jobCacheTTL = 10 * time.Minute

// JobHandler 异步任务处理器
// 创建接口只落任务记录并投递消息；执行由任务进程消费完成。
// 进入终态（completed/failed）的任务查询走 Redis 读穿缓存，终态记录不再变化。
type JobHandler struct {
	jobs     repository.JobRepository
	producer *messaging.Producer
	cache    *redis.Client
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs repository.JobRepository, producer *messaging.Producer, cache *redis.Client) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		producer: producer,
		cache:    cache,
	}
}

// CreateJob 创建异步任务
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	dispatchReq := &dispatch.Request{
		Kind:        entity.JobKind(req.Kind),
		UserID:      req.UserID,
		BookID:      req.BookID,
		ChapterID:   req.ChapterID,
		UserMessage: req.UserMessage,
	}
	if err := dispatchReq.Validate(); err != nil {
		dto.FromError(c, err)
		return
	}

	ctx := c.Request.Context()

	input, _ := json.Marshal(dispatchReq)
	record := entity.NewJob(req.UserID, req.BookID, req.ChapterID, dispatchReq.Kind, input)
	if err := h.jobs.Create(ctx, record); err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}

	if _, err := h.producer.PublishJob(ctx, &messaging.JobMessage{
		JobID:       record.ID,
		UserID:      req.UserID,
		BookID:      req.BookID,
		ChapterID:   req.ChapterID,
		Kind:        dispatchReq.Kind,
		UserMessage: req.UserMessage,
	}); err != nil {
		logger.Error(ctx, "failed to publish job message", err, "job_id", record.ID)
		dto.FromError(c, apperrors.ErrCacheError.WithError(err))
		return
	}

	dto.Accepted(c, dto.ToJobResponse(record))
}

// GetJob 查询任务状态与结果
func (h *JobHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("jid")

	if cached, ok := h.cachedJob(ctx, jobID); ok {
		dto.Success(c, cached)
		return
	}

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}
	if job == nil {
		dto.FromError(c, apperrors.ErrJobNotFound)
		return
	}

	resp := dto.ToJobResponse(job)
	if job.Status == entity.JobStatusCompleted || job.Status == entity.JobStatusFailed {
		h.cacheJob(ctx, jobID, resp)
	}

	dto.Success(c, resp)
}

// cachedJob 读取终态任务缓存
func (h *JobHandler) cachedJob(ctx context.Context, jobID string) (*dto.JobResponse, bool) {
	if h.cache == nil {
		return nil, false
	}

	raw, err := h.cache.Get(ctx, jobCacheKey(jobID))
	if err != nil {
		if !redis.IsNil(err) {
			logger.Warn(ctx, "job cache read failed", "job_id", jobID, "error", err)
		}
		return nil, false
	}

	var resp dto.JobResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		logger.Warn(ctx, "job cache entry corrupted", "job_id", jobID, "error", err)
		return nil, false
	}
	return &resp, true
}

// cacheJob 写入终态任务缓存，失败只记日志
func (h *JobHandler) cacheJob(ctx context.Context, jobID string, resp *dto.JobResponse) {
	if h.cache == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, jobCacheKey(jobID), string(data), jobCacheTTL); err != nil {
		logger.Warn(ctx, "job cache write failed", "job_id", jobID, "error", err)
	}
}

func jobCacheKey(jobID string) string {
	return "cache:job:" + jobID
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"storytune-api/internal/application/dispatch"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/interfaces/http/dto"
)

// StoryHandler 剧情处理器（同步执行路径）
type StoryHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewStoryHandler 创建剧情处理器
func NewStoryHandler(d *dispatch.Dispatcher) *StoryHandler {
	return &StoryHandler{dispatcher: d}
}

// Continue 续写剧情：同步生成并返回信封
func (h *StoryHandler) Continue(c *gin.Context) {
	var req dto.ContinueStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	env := h.dispatcher.Dispatch(c.Request.Context(), &dispatch.Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      req.UserID,
		BookID:      req.BookID,
		UserMessage: req.Message,
	})

	writeEnvelope(c, env)
}

// FinishChapter 收尾章节：摘要、情感聚合与音乐推荐
func (h *StoryHandler) FinishChapter(c *gin.Context) {
	var req dto.FinishChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	env := h.dispatcher.Dispatch(c.Request.Context(), &dispatch.Request{
		Kind:      entity.JobKindRecommendMusic,
		UserID:    req.UserID,
		BookID:    req.BookID,
		ChapterID: req.ChapterID,
	})

	writeEnvelope(c, env)
}

// writeEnvelope 把执行信封写为 HTTP 响应
func writeEnvelope(c *gin.Context, env *dispatch.Envelope) {
	if env.Succeeded() {
		dto.Success(c, json.RawMessage(env.Payload))
		return
	}

	c.JSON(env.Code, dto.ErrorResponse{
		Code:    env.Code,
		Message: env.Message,
		Error: &dto.ErrorDetail{
			ErrorCode: env.ErrorCode,
		},
		TraceID: c.GetString("trace_id"),
	})
}

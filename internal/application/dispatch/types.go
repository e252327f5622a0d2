// Package dispatch 提供任务分发与执行
package dispatch

import (
	"encoding/json"

	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
)

// Request 任务请求
type Request struct {
	Kind        entity.JobKind `json:"job_kind"`
	UserID      string         `json:"user_id"`
	BookID      string         `json:"book_id"`
	ChapterID   string         `json:"chapter_id,omitempty"`
	UserMessage string         `json:"user_message,omitempty"`
}

// Validate 校验请求参数
func (r *Request) Validate() error {
	switch r.Kind {
	case entity.JobKindGenerateChapter, entity.JobKindRecommendMusic, entity.JobKindClassifyTurns:
	default:
		return apperrors.ErrInvalidParam.WithDetail("unknown job kind: " + string(r.Kind))
	}
	if r.UserID == "" {
		return apperrors.ErrInvalidParam.WithDetail("user_id is required")
	}
	if r.BookID == "" {
		return apperrors.ErrInvalidParam.WithDetail("book_id is required")
	}
	if r.Kind == entity.JobKindGenerateChapter && r.UserMessage == "" {
		return apperrors.ErrInvalidParam.WithDetail("user_message is required for generate_chapter")
	}
	if r.Kind == entity.JobKindClassifyTurns && r.ChapterID == "" {
		return apperrors.ErrInvalidParam.WithDetail("chapter_id is required for classify_turns")
	}
	return nil
}

// Envelope 任务执行结果信封
// Code 为整数状态码（成功 0，失败取 HTTP 状态码）；ErrorCode 保留细分错误码。
type Envelope struct {
	Status    string          `json:"status"`
	Code      int             `json:"code"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Succeeded 检查信封是否为成功结果
func (e *Envelope) Succeeded() bool {
	return e.Status == "success"
}

// okEnvelope 构造成功信封
func okEnvelope(payload interface{}) *Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		return failEnvelope(apperrors.ErrInternalError.WithError(err))
	}
	return &Envelope{
		Status:  "success",
		Code:    0,
		Payload: data,
	}
}

// failEnvelope 构造失败信封
func failEnvelope(err error) *Envelope {
	appErr := apperrors.AsAppError(err)
	msg := appErr.Message
	if appErr.Detail != "" {
		msg = msg + ": " + appErr.Detail
	}
	return &Envelope{
		Status:    "error",
		Code:      appErr.HTTPStatus,
		ErrorCode: string(appErr.Code),
		Message:   msg,
	}
}

// GenerateResult 章节续写结果
type GenerateResult struct {
	ChapterID string `json:"chapter_id"`
	UserTurn  string `json:"user_turn_id"`
	StoryTurn string `json:"story_turn_id"`
	Text      string `json:"text"`
}

// RecommendResult 音乐推荐结果
type RecommendResult struct {
	ChapterID string               `json:"chapter_id"`
	Summary   string               `json:"summary"`
	Emotion   entity.EmotionVector `json:"emotion"`
	Tracks    []entity.MusicRef    `json:"tracks"`
}

// ClassifyResult 情感分类结果
type ClassifyResult struct {
	ChapterID  string `json:"chapter_id"`
	Classified int    `json:"classified"`
}

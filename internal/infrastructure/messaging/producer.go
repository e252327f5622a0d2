// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storytune-api/internal/domain/entity"
)

var tracer = otel.Tracer("messaging")

// JobMessage 异步任务消息载荷
// Kind 决定派发到哪个流：generate_chapter 与 recommend_music 走故事流，
// classify_turns 走分类流。
type JobMessage struct {
	JobID       string         `json:"job_id"`
	UserID      string         `json:"user_id"`
	BookID      string         `json:"book_id"`
	ChapterID   string         `json:"chapter_id,omitempty"`
	Kind        entity.JobKind `json:"kind"`
	UserMessage string         `json:"user_message,omitempty"`
}

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishJob 按任务类型发布任务消息
func (p *Producer) PublishJob(ctx context.Context, job *JobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, string(job.Kind), job.UserID, job.BookID, job)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamForKind(job.Kind), msg)
}

// StreamForKind 任务类型到流的映射
func StreamForKind(kind entity.JobKind) Stream {
	if kind == entity.JobKindClassifyTurns {
		return StreamEmotionClassify
	}
	return StreamStoryJobs
}

// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"storytune-api/internal/domain/entity"
)

// TurnRepository 轮次仓储实现
type TurnRepository struct {
	client *Client
}

// NewTurnRepository 创建轮次仓储
func NewTurnRepository(client *Client) *TurnRepository {
	return &TurnRepository{client: client}
}

// Append 追加轮次
func (r *TurnRepository) Append(ctx context.Context, turn *entity.Turn) error {
	ctx, span := tracer.Start(ctx, "postgres.TurnRepository.Append")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ListByChapter 按序号升序获取章节全部轮次
func (r *TurnRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.Turn, error) {
	ctx, span := tracer.Start(ctx, "postgres.TurnRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var turns []*entity.Turn
	if err := db.Where("chapter_id = ?", chapterID).
		Order("seq_num ASC").
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, nil
}

// ListUnclassified 获取尚未附带情感向量的轮次
func (r *TurnRepository) ListUnclassified(ctx context.Context, chapterID string) ([]*entity.Turn, error) {
	ctx, span := tracer.Start(ctx, "postgres.TurnRepository.ListUnclassified")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var turns []*entity.Turn
	if err := db.Where("chapter_id = ? AND emotion IS NULL", chapterID).
		Order("seq_num ASC").
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list unclassified turns: %w", err)
	}
	return turns, nil
}

// MaxSeqNum 获取章节当前最大轮次序号
func (r *TurnRepository) MaxSeqNum(ctx context.Context, chapterID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.TurnRepository.MaxSeqNum")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxSeq *int
	if err := db.Model(&entity.Turn{}).
		Where("chapter_id = ?", chapterID).
		Select("MAX(seq_num)").
		Scan(&maxSeq).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max seq num: %w", err)
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}

// AttachEmotion 为轮次回填情感向量
func (r *TurnRepository) AttachEmotion(ctx context.Context, turnID string, vec entity.EmotionVector) error {
	ctx, span := tracer.Start(ctx, "postgres.TurnRepository.AttachEmotion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Turn{}).Where("id = ?", turnID).
		Select("emotion").
		Updates(&entity.Turn{Emotion: vec}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to attach emotion: %w", err)
	}
	return nil
}

// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storytune-api/internal/domain/entity"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// GetActiveByBook 获取书籍当前活跃章节（open 或 summarizing）
func (r *ChapterRepository) GetActiveByBook(ctx context.Context, bookID string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetActiveByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.Where("book_id = ? AND status IN ?", bookID,
		[]entity.ChapterStatus{entity.ChapterStatusOpen, entity.ChapterStatusSummarizing}).
		Order("seq_num DESC").
		First(&chapter).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active chapter: %w", err)
	}
	return &chapter, nil
}

// ListClosedByBook 按序号升序获取书籍的已关闭章节
func (r *ChapterRepository) ListClosedByBook(ctx context.Context, bookID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListClosedByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("book_id = ? AND status = ?", bookID, entity.ChapterStatusClosed).
		Order("seq_num ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list closed chapters: %w", err)
	}
	return chapters, nil
}

// MaxSeqNum 获取书籍当前最大章节序号
func (r *ChapterRepository) MaxSeqNum(ctx context.Context, bookID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.MaxSeqNum")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxSeq *int
	if err := db.Model(&entity.Chapter{}).
		Where("book_id = ?", bookID).
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

// UpdateStatusIf 条件状态转移：仅当当前状态等于 from 时置为 to
func (r *ChapterRepository) UpdateStatusIf(ctx context.Context, id string, from, to entity.ChapterStatus) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.UpdateStatusIf")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Chapter{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to update chapter status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SaveSummary 写入摘要与推荐音乐，不改变状态
func (r *ChapterRepository) SaveSummary(ctx context.Context, id string, summary string, refs []entity.MusicRef) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.SaveSummary")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Chapter{}).Where("id = ?", id).
		Select("summary", "music_refs").
		Updates(&entity.Chapter{Summary: summary, MusicRefs: refs}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save chapter summary: %w", err)
	}
	return nil
}

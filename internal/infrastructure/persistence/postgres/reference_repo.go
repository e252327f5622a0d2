// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"storytune-api/internal/domain/entity"
)

// GenreDocRepository 题材要求语料仓储实现
type GenreDocRepository struct {
	client *Client
}

// NewGenreDocRepository 创建题材语料仓储
func NewGenreDocRepository(client *Client) *GenreDocRepository {
	return &GenreDocRepository{client: client}
}

// ListAll 获取全部语料文档
func (r *GenreDocRepository) ListAll(ctx context.Context) ([]*entity.GenreRequirementDoc, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenreDocRepository.ListAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var docs []*entity.GenreRequirementDoc
	if err := db.Order("id ASC").Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list genre docs: %w", err)
	}
	return docs, nil
}

// UpsertBatch 批量写入语料文档（仅供初始化工具使用）
func (r *GenreDocRepository) UpsertBatch(ctx context.Context, docs []*entity.GenreRequirementDoc) error {
	ctx, span := tracer.Start(ctx, "postgres.GenreDocRepository.UpsertBatch")
	defer span.End()

	if len(docs) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&docs).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert genre docs: %w", err)
	}
	return nil
}

// MusicRepository 音乐曲库仓储实现
type MusicRepository struct {
	client *Client
}

// NewMusicRepository 创建曲库仓储
func NewMusicRepository(client *Client) *MusicRepository {
	return &MusicRepository{client: client}
}

// ListAll 获取全部音乐条目
func (r *MusicRepository) ListAll(ctx context.Context) ([]*entity.MusicItem, error) {
	ctx, span := tracer.Start(ctx, "postgres.MusicRepository.ListAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var items []*entity.MusicItem
	if err := db.Order("id ASC").Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list music items: %w", err)
	}
	return items, nil
}

// UpsertBatch 批量写入音乐条目（仅供初始化工具使用）
func (r *MusicRepository) UpsertBatch(ctx context.Context, items []*entity.MusicItem) error {
	ctx, span := tracer.Start(ctx, "postgres.MusicRepository.UpsertBatch")
	defer span.End()

	if len(items) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&items).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert music items: %w", err)
	}
	return nil
}

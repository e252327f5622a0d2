// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"storytune-api/internal/domain/entity"
)

// GenreDocRepository 题材要求语料仓储接口
// 语料运行时只读；UpsertBatch 仅供初始化工具使用。
type GenreDocRepository interface {
	ListAll(ctx context.Context) ([]*entity.GenreRequirementDoc, error)
	UpsertBatch(ctx context.Context, docs []*entity.GenreRequirementDoc) error
}

// MusicRepository 音乐曲库仓储接口
// 曲库运行时只读；UpsertBatch 仅供初始化工具使用。
type MusicRepository interface {
	ListAll(ctx context.Context) ([]*entity.MusicItem, error)
	UpsertBatch(ctx context.Context, items []*entity.MusicItem) error
}

// Package feature 提供进程级只读参考数据装载
package feature

import (
	"context"
	"fmt"

	"storytune-api/internal/domain/entity"
	"storytune-api/internal/domain/repository"
	"storytune-api/pkg/logger"
)

// Store 参考数据存储
// 启动时装载一次，之后只读：语料、曲库与权重表在请求期间不变化。
type Store struct {
	docs        []*entity.GenreRequirementDoc
	docByID     map[string]*entity.GenreRequirementDoc
	docsByGenre map[string][]*entity.GenreRequirementDoc
	music       []*entity.MusicItem
	weights     entity.WeightTable
}

// Load 从仓储装载参考数据
func Load(ctx context.Context, docRepo repository.GenreDocRepository, musicRepo repository.MusicRepository, weights entity.WeightTable) (*Store, error) {
	if !weights.Complete() {
		return nil, fmt.Errorf("weight table does not cover all emotion labels")
	}

	docs, err := docRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load genre docs: %w", err)
	}

	music, err := musicRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load music items: %w", err)
	}

	s := &Store{
		docs:        docs,
		docByID:     make(map[string]*entity.GenreRequirementDoc, len(docs)),
		docsByGenre: make(map[string][]*entity.GenreRequirementDoc),
		music:       music,
		weights:     weights,
	}
	for _, doc := range docs {
		s.docByID[doc.ID] = doc
		s.docsByGenre[doc.Genre] = append(s.docsByGenre[doc.Genre], doc)
	}

	logger.Info(ctx, "reference data loaded",
		"genre_docs", len(docs),
		"music_items", len(music),
	)
	return s, nil
}

// Docs 获取全部语料文档
func (s *Store) Docs() []*entity.GenreRequirementDoc {
	return s.docs
}

// DocByID 按 ID 获取语料文档，未找到返回 nil
func (s *Store) DocByID(id string) *entity.GenreRequirementDoc {
	return s.docByID[id]
}

// DocsByGenre 按题材获取语料文档，未知题材返回空切片
func (s *Store) DocsByGenre(genre string) []*entity.GenreRequirementDoc {
	return s.docsByGenre[genre]
}

// MusicItems 获取全部音乐条目
func (s *Store) MusicItems() []*entity.MusicItem {
	return s.music
}

// WeightTable 获取情感权重表
func (s *Store) WeightTable() entity.WeightTable {
	return s.weights
}

// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"storytune-api/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	Create(ctx context.Context, chapter *entity.Chapter) error
	// GetByID 未找到时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)
	// GetActiveByBook 返回书籍当前处于 {open, summarizing} 的章节，未找到时返回 (nil, nil)
	GetActiveByBook(ctx context.Context, bookID string) (*entity.Chapter, error)
	// ListClosedByBook 按 seq_num 升序返回已关闭章节
	ListClosedByBook(ctx context.Context, bookID string) ([]*entity.Chapter, error)
	// MaxSeqNum 返回书籍当前最大章节序号，无章节时返回 0
	MaxSeqNum(ctx context.Context, bookID string) (int, error)

	// UpdateStatusIf 条件状态转移（CAS）：仅当当前状态等于 from 时置为 to。
	// 返回是否发生了转移；from == to 时仅刷新 updated_at，用于重驱动计时。
	UpdateStatusIf(ctx context.Context, id string, from, to entity.ChapterStatus) (bool, error)

	// SaveSummary 写入摘要与推荐音乐（依赖数据），不改变状态。
	// 状态转移必须在其后单独提交，保证崩溃时章节停留在先前的合法状态。
	SaveSummary(ctx context.Context, id string, summary string, refs []entity.MusicRef) error
}

// TurnRepository 轮次仓储接口（追加写）
type TurnRepository interface {
	Append(ctx context.Context, turn *entity.Turn) error
	// ListByChapter 按 seq_num 升序返回章节全部轮次
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.Turn, error)
	// ListUnclassified 返回尚未附带情感向量的轮次
	ListUnclassified(ctx context.Context, chapterID string) ([]*entity.Turn, error)
	// MaxSeqNum 返回章节当前最大轮次序号，无轮次时返回 0
	MaxSeqNum(ctx context.Context, chapterID string) (int, error)
	// AttachEmotion 为轮次回填情感向量
	AttachEmotion(ctx context.Context, turnID string, vec entity.EmotionVector) error
}

// Package dispatch 提供任务分发与执行
package dispatch

import (
	"context"
	"strings"

	"storytune-api/internal/application/emotion"
	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
)

// executeRecommend 章节收尾与音乐推荐流程
// open -> summarizing 后，摘要生成、情感聚合与推荐都在租约外执行，
// 最后一并落库并推进到 closed。中途失败章节停留在 summarizing，
// 超时后允许重驱动。
func (d *Dispatcher) executeRecommend(ctx context.Context, req *Request) (*RecommendResult, error) {
	if _, err := d.loadOwnedBook(ctx, req.BookID, req.UserID); err != nil {
		return nil, err
	}

	chapter, err := d.resolveChapter(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithContext(ctx, logger.ChapterIDKey, chapter.ID)

	switch chapter.Status {
	case entity.ChapterStatusOpen:
		if err := d.lifecycle.RequestSummary(ctx, req.BookID, chapter.ID); err != nil {
			return nil, err
		}
	case entity.ChapterStatusSummarizing:
		// 另一个推荐流程可能仍在进行；只有确认卡住才接管
		if err := d.lifecycle.RedriveSummary(ctx, req.BookID, chapter.ID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.ErrInvalidTransition.WithDetail("chapter is already closed")
	}

	turns, err := d.turns.ListByChapter(ctx, chapter.ID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	// 未分类的轮次先同步补分类，尽量避免空情感数据
	if err := d.classifyPending(ctx, chapter.ID, turns); err != nil {
		return nil, err
	}

	distribution, err := emotion.Aggregate(turns)
	if err != nil {
		return nil, err
	}

	summary, err := callExternal(ctx, d, func() (string, error) {
		return d.generator.Summarize(ctx, flattenTurns(turns))
	})
	if err != nil {
		return nil, err
	}

	recs, err := d.engine.Recommend(distribution, d.store.MusicItems())
	if err != nil {
		return nil, err
	}

	refs := make([]entity.MusicRef, 0, len(recs))
	for _, rec := range recs {
		refs = append(refs, entity.MusicRef{
			MusicID:    rec.Item.ID,
			Title:      rec.Item.Title,
			Artist:     rec.Item.Artist,
			Similarity: rec.Similarity,
		})
	}

	if err := d.lifecycle.CompleteSummary(ctx, req.BookID, chapter.ID, summary, refs); err != nil {
		return nil, err
	}

	return &RecommendResult{
		ChapterID: chapter.ID,
		Summary:   summary,
		Emotion:   distribution,
		Tracks:    refs,
	}, nil
}

// resolveChapter 定位目标章节：显式指定优先，否则取当前活跃章节
func (d *Dispatcher) resolveChapter(ctx context.Context, req *Request) (*entity.Chapter, error) {
	if req.ChapterID != "" {
		chapter, err := d.chapters.GetByID(ctx, req.ChapterID)
		if err != nil {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		if chapter == nil || chapter.BookID != req.BookID {
			return nil, apperrors.ErrChapterNotFound
		}
		return chapter, nil
	}

	chapter, err := d.lifecycle.CurrentChapter(ctx, req.BookID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound.WithDetail("book has no active chapter")
	}
	return chapter, nil
}

// classifyPending 为缺少情感向量的轮次同步补分类
// 分类服务未配置时跳过；瞬时失败上抛交由任务级重试。
func (d *Dispatcher) classifyPending(ctx context.Context, chapterID string, turns []*entity.Turn) error {
	if d.classifier == nil {
		return nil
	}

	pending := make([]*entity.Turn, 0)
	for _, turn := range turns {
		if !turn.HasEmotion() {
			pending = append(pending, turn)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if err := d.classifyTurns(ctx, pending); err != nil {
		return err
	}

	logger.Info(ctx, "classified pending turns inline", "chapter_id", chapterID, "count", len(pending))
	return nil
}

// flattenTurns 把轮次拼接为摘要输入
func flattenTurns(turns []*entity.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

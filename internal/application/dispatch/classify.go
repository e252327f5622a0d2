// Package dispatch 提供任务分发与执行
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
)

// executeClassify 情感分类流程
// 对章节内尚未分类的轮次并发调用分类服务并回填向量。
// 已全部分类时直接返回，分类是幂等操作。
func (d *Dispatcher) executeClassify(ctx context.Context, req *Request) (*ClassifyResult, error) {
	if _, err := d.loadOwnedBook(ctx, req.BookID, req.UserID); err != nil {
		return nil, err
	}
	if d.classifier == nil {
		return nil, apperrors.ErrClassifierUnavailable.WithDetail("classifier is not configured")
	}

	chapter, err := d.chapters.GetByID(ctx, req.ChapterID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if chapter == nil || chapter.BookID != req.BookID {
		return nil, apperrors.ErrChapterNotFound
	}

	pending, err := d.turns.ListUnclassified(ctx, req.ChapterID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if len(pending) == 0 {
		return &ClassifyResult{ChapterID: req.ChapterID, Classified: 0}, nil
	}

	if err := d.classifyTurns(ctx, pending); err != nil {
		return nil, err
	}

	return &ClassifyResult{ChapterID: req.ChapterID, Classified: len(pending)}, nil
}

// classifyTurns 并发分类并回填情感向量
func (d *Dispatcher) classifyTurns(ctx context.Context, turns []*entity.Turn) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.classifyConcurrency)

	for _, turn := range turns {
		turn := turn
		g.Go(func() error {
			vec, err := callExternal(gctx, d, func() (entity.EmotionVector, error) {
				return d.classifier.Classify(gctx, turn.Text)
			})
			if err != nil {
				return err
			}

			if err := d.turns.AttachEmotion(gctx, turn.ID, vec); err != nil {
				return apperrors.ErrDatabaseError.WithError(err)
			}
			// 同一实体在内存中同步更新，聚合流程无需重新读库
			turn.Emotion = vec
			return nil
		})
	}

	return g.Wait()
}

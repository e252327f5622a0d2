// Package dispatch 提供任务分发与执行
package dispatch

import (
	"context"
	"strings"

	"storytune-api/internal/application/lifecycle"
	"storytune-api/internal/application/prompt"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/infrastructure/llm"
	"storytune-api/internal/infrastructure/messaging"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
)

// executeGenerate 章节续写流程
// 租约只在状态读写段持有；生成调用在租约外进行，
// 因此落库前章节可能被并发关闭，由追加时的状态校验兜底。
func (d *Dispatcher) executeGenerate(ctx context.Context, req *Request) (*GenerateResult, error) {
	book, err := d.loadOwnedBook(ctx, req.BookID, req.UserID)
	if err != nil {
		return nil, err
	}

	chapter, err := d.lifecycle.EnsureOpenChapter(ctx, req.BookID)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithContext(ctx, logger.ChapterIDKey, chapter.ID)

	priorText, err := d.buildPriorText(ctx, req.BookID, chapter.ID)
	if err != nil {
		return nil, err
	}

	evidence := d.retrieveEvidence(req.UserMessage, book.Genre)

	payload, err := d.builder.Build(&prompt.Input{
		Genre:       book.Genre,
		UserMessage: req.UserMessage,
		PriorText:   priorText,
		Evidence:    evidence,
	})
	if err != nil {
		return nil, err
	}

	// 外部调用在租约外执行
	text, err := callExternal(ctx, d, func() (string, error) {
		return d.generator.Generate(ctx, &llm.GenerateRequest{
			System: payload.System,
			Prompt: payload.Prompt,
		})
	})
	if err != nil {
		return nil, err
	}

	turns, err := d.lifecycle.AppendTurns(ctx, req.BookID, chapter.ID, []lifecycle.TurnInput{
		{Speaker: entity.SpeakerUser, Text: req.UserMessage},
		{Speaker: entity.SpeakerGenerator, Text: text},
	})
	if err != nil {
		return nil, err
	}

	d.enqueueClassify(ctx, req.UserID, req.BookID, chapter.ID)

	return &GenerateResult{
		ChapterID: chapter.ID,
		UserTurn:  turns[0].ID,
		StoryTurn: turns[1].ID,
		Text:      text,
	}, nil
}

// loadOwnedBook 加载书籍并校验归属
func (d *Dispatcher) loadOwnedBook(ctx context.Context, bookID, userID string) (*entity.Book, error) {
	book, err := d.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if book == nil {
		return nil, apperrors.ErrBookNotFound
	}
	if !book.OwnedBy(userID) {
		return nil, apperrors.ErrForbidden.WithDetail("book belongs to another user")
	}
	return book, nil
}

// buildPriorText 拼接既有剧情：已关闭章节的摘要在前，当前章节轮次在后
func (d *Dispatcher) buildPriorText(ctx context.Context, bookID, chapterID string) (string, error) {
	closed, err := d.chapters.ListClosedByBook(ctx, bookID)
	if err != nil {
		return "", apperrors.ErrDatabaseError.WithError(err)
	}

	turns, err := d.turns.ListByChapter(ctx, chapterID)
	if err != nil {
		return "", apperrors.ErrDatabaseError.WithError(err)
	}

	var sb strings.Builder
	for _, ch := range closed {
		if ch.Summary == "" {
			continue
		}
		sb.WriteString(ch.Summary)
		sb.WriteString("\n")
	}
	for _, turn := range turns {
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// retrieveEvidence 按用户输入在书籍题材内召回要求片段
func (d *Dispatcher) retrieveEvidence(query, genre string) []string {
	scored := d.index.Search(query, genre, d.topK)
	evidence := make([]string, 0, len(scored))
	for _, s := range scored {
		if doc := d.store.DocByID(s.ID); doc != nil {
			evidence = append(evidence, doc.Content)
		}
	}
	return evidence
}

// enqueueClassify 派生异步情感分类任务，失败只记日志不影响主流程
func (d *Dispatcher) enqueueClassify(ctx context.Context, userID, bookID, chapterID string) {
	if d.producer == nil {
		return
	}

	req := &Request{
		Kind:      entity.JobKindClassifyTurns,
		UserID:    userID,
		BookID:    bookID,
		ChapterID: chapterID,
	}

	jobID := ""
	if d.jobs != nil {
		record := entity.NewJob(userID, bookID, chapterID, entity.JobKindClassifyTurns, marshalInput(req))
		if err := d.jobs.Create(ctx, record); err != nil {
			logger.Error(ctx, "failed to create classify job record", err)
		} else {
			jobID = record.ID
		}
	}

	if _, err := d.producer.PublishJob(ctx, &messaging.JobMessage{
		JobID:     jobID,
		UserID:    userID,
		BookID:    bookID,
		ChapterID: chapterID,
		Kind:      entity.JobKindClassifyTurns,
	}); err != nil {
		logger.Error(ctx, "failed to enqueue classify job", err)
	}
}

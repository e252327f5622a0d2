// Package lifecycle 提供章节状态机管理
package lifecycle

import (
	"context"
	"time"

	"storytune-api/internal/domain/entity"
	"storytune-api/internal/domain/repository"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
	"storytune-api/pkg/metrics"
)

// TurnInput 待追加的轮次
type TurnInput struct {
	Speaker entity.Speaker
	Text    string
}

// Manager 章节状态机管理器
// 状态机：open -> summarizing -> closed，closed 为终态。
// 所有写路径遵循 获取租约-校验-变更-释放 模式；外部服务调用必须在租约外进行，
// 因此摘要流程拆为 RequestSummary 与 CompleteSummary 两段。
type Manager struct {
	chapters   repository.ChapterRepository
	turns      repository.TurnRepository
	lease      repository.BookLease
	stuckAfter time.Duration
}

// NewManager 创建状态机管理器
func NewManager(chapters repository.ChapterRepository, turns repository.TurnRepository, lease repository.BookLease, stuckAfter time.Duration) *Manager {
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}
	return &Manager{
		chapters:   chapters,
		turns:      turns,
		lease:      lease,
		stuckAfter: stuckAfter,
	}
}

// CurrentChapter 获取书籍当前活跃章节（只读，不取租约），无活跃章节返回 (nil, nil)
func (m *Manager) CurrentChapter(ctx context.Context, bookID string) (*entity.Chapter, error) {
	return m.chapters.GetActiveByBook(ctx, bookID)
}

// OpenChapter 开启新章节
// 书籍已有活跃章节时拒绝：每本书同一时刻至多一个章节处于 {open, summarizing}。
func (m *Manager) OpenChapter(ctx context.Context, bookID string) (*entity.Chapter, error) {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := m.chapters.GetActiveByBook(ctx, bookID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if active != nil {
		metrics.ChapterTransitionsTotal.WithLabelValues("none", "open", "rejected").Inc()
		return nil, apperrors.ErrInvalidTransition.WithDetail("book already has an active chapter")
	}

	return m.createChapter(ctx, bookID)
}

// EnsureOpenChapter 获取可写章节，不存在时开启新章节
// 活跃章节处于 summarizing 时拒绝写入。
func (m *Manager) EnsureOpenChapter(ctx context.Context, bookID string) (*entity.Chapter, error) {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := m.chapters.GetActiveByBook(ctx, bookID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if active != nil {
		if active.Status != entity.ChapterStatusOpen {
			return nil, apperrors.ErrChapterNotOpen.WithDetail("chapter is summarizing")
		}
		return active, nil
	}

	return m.createChapter(ctx, bookID)
}

// createChapter 以下一个序号创建章节，调用方必须持有书籍租约
func (m *Manager) createChapter(ctx context.Context, bookID string) (*entity.Chapter, error) {
	maxSeq, err := m.chapters.MaxSeqNum(ctx, bookID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	chapter := entity.NewChapter(bookID, maxSeq+1)
	if err := m.chapters.Create(ctx, chapter); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.ChapterTransitionsTotal.WithLabelValues("none", "open", "success").Inc()
	logger.Info(ctx, "chapter opened", "book_id", bookID, "chapter_id", chapter.ID, "seq_num", chapter.SeqNum)
	return chapter, nil
}

// AppendTurns 向章节追加轮次
// 章节必须处于 open；多条轮次在同一租约内按顺序分配连续序号。
func (m *Manager) AppendTurns(ctx context.Context, bookID, chapterID string, inputs []TurnInput) ([]*entity.Turn, error) {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	chapter, err := m.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound
	}
	if chapter.Status != entity.ChapterStatusOpen {
		return nil, apperrors.ErrChapterNotOpen.WithDetail("chapter status is " + string(chapter.Status))
	}

	maxSeq, err := m.turns.MaxSeqNum(ctx, chapterID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	turns := make([]*entity.Turn, 0, len(inputs))
	for i, in := range inputs {
		turn := entity.NewTurn(chapterID, maxSeq+i+1, in.Speaker, in.Text)
		if err := m.turns.Append(ctx, turn); err != nil {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// RequestSummary 发起章节摘要：open -> summarizing
// CAS 失败说明状态已被其他流程推进，返回 ErrChapterNotOpen。
func (m *Manager) RequestSummary(ctx context.Context, bookID, chapterID string) error {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return err
	}
	defer release()

	ok, err := m.chapters.UpdateStatusIf(ctx, chapterID, entity.ChapterStatusOpen, entity.ChapterStatusSummarizing)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		metrics.ChapterTransitionsTotal.WithLabelValues("open", "summarizing", "rejected").Inc()
		return apperrors.ErrChapterNotOpen.WithDetail("chapter is not open")
	}

	metrics.ChapterTransitionsTotal.WithLabelValues("open", "summarizing", "success").Inc()
	logger.Info(ctx, "chapter summary requested", "book_id", bookID, "chapter_id", chapterID)
	return nil
}

// RedriveSummary 重驱动卡住的摘要流程
// 仅当章节停留在 summarizing 超过 stuckAfter 时允许，刷新 updated_at 重新计时。
func (m *Manager) RedriveSummary(ctx context.Context, bookID, chapterID string) error {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return err
	}
	defer release()

	chapter, err := m.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if chapter == nil {
		return apperrors.ErrChapterNotFound
	}
	if !chapter.StuckInSummarizing(m.stuckAfter, time.Now()) {
		return apperrors.ErrInvalidTransition.WithDetail("chapter is not stuck in summarizing")
	}

	// 同态 CAS 仅刷新 updated_at，防止并发重驱动
	ok, err := m.chapters.UpdateStatusIf(ctx, chapterID, entity.ChapterStatusSummarizing, entity.ChapterStatusSummarizing)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		return apperrors.ErrInvalidTransition.WithDetail("chapter left summarizing concurrently")
	}

	logger.Warn(ctx, "chapter summary redriven", "book_id", bookID, "chapter_id", chapterID)
	return nil
}

// CompleteSummary 完成章节摘要：summarizing -> closed
// 先落摘要与推荐数据，再做状态转移；中途崩溃时章节仍停留在 summarizing，
// 可被重驱动，不会出现缺数据的 closed 章节。
func (m *Manager) CompleteSummary(ctx context.Context, bookID, chapterID, summary string, refs []entity.MusicRef) error {
	release, err := m.lease.Acquire(ctx, bookID)
	if err != nil {
		return err
	}
	defer release()

	if err := m.chapters.SaveSummary(ctx, chapterID, summary, refs); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}

	ok, err := m.chapters.UpdateStatusIf(ctx, chapterID, entity.ChapterStatusSummarizing, entity.ChapterStatusClosed)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		metrics.ChapterTransitionsTotal.WithLabelValues("summarizing", "closed", "rejected").Inc()
		return apperrors.ErrInvalidTransition.WithDetail("chapter is not summarizing")
	}

	metrics.ChapterTransitionsTotal.WithLabelValues("summarizing", "closed", "success").Inc()
	logger.Info(ctx, "chapter closed", "book_id", bookID, "chapter_id", chapterID)
	return nil
}

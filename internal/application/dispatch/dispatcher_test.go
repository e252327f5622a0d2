package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"storytune-api/internal/application/feature"
	"storytune-api/internal/application/lifecycle"
	"storytune-api/internal/application/prompt"
	"storytune-api/internal/application/recommend"
	"storytune-api/internal/application/retrieval"
	"storytune-api/internal/config"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/infrastructure/llm"
	"storytune-api/internal/infrastructure/messaging"
	apperrors "storytune-api/pkg/errors"
)

// fakeBookRepo 内存书籍仓储
type fakeBookRepo struct {
	mu    sync.Mutex
	books map[string]*entity.Book
}

func (r *fakeBookRepo) Create(_ context.Context, book *entity.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = book
	return nil
}

func (r *fakeBookRepo) GetByID(_ context.Context, id string) (*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[id], nil
}

func (r *fakeBookRepo) ListByUser(_ context.Context, userID string) ([]*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Book
	for _, b := range r.books {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeChapterRepo 内存章节仓储
type fakeChapterRepo struct {
	mu       sync.Mutex
	chapters map[string]*entity.Chapter
	nextID   int
}

func (r *fakeChapterRepo) Create(_ context.Context, chapter *entity.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	chapter.ID = fmt.Sprintf("ch-%d", r.nextID)
	clone := *chapter
	r.chapters[chapter.ID] = &clone
	return nil
}

func (r *fakeChapterRepo) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.chapters[id]
	if !ok {
		return nil, nil
	}
	clone := *ch
	return &clone, nil
}

func (r *fakeChapterRepo) GetActiveByBook(_ context.Context, bookID string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active *entity.Chapter
	for _, ch := range r.chapters {
		if ch.BookID == bookID && ch.IsActive() {
			if active == nil || ch.SeqNum > active.SeqNum {
				active = ch
			}
		}
	}
	if active == nil {
		return nil, nil
	}
	clone := *active
	return &clone, nil
}

func (r *fakeChapterRepo) ListClosedByBook(_ context.Context, bookID string) ([]*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Chapter
	for _, ch := range r.chapters {
		if ch.BookID == bookID && ch.IsClosed() {
			clone := *ch
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeChapterRepo) MaxSeqNum(_ context.Context, bookID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, ch := range r.chapters {
		if ch.BookID == bookID && ch.SeqNum > max {
			max = ch.SeqNum
		}
	}
	return max, nil
}

func (r *fakeChapterRepo) UpdateStatusIf(_ context.Context, id string, from, to entity.ChapterStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.chapters[id]
	if !ok || ch.Status != from {
		return false, nil
	}
	ch.Status = to
	ch.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeChapterRepo) SaveSummary(_ context.Context, id string, summary string, refs []entity.MusicRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.chapters[id]
	if !ok {
		return errors.New("chapter not found")
	}
	ch.Summary = summary
	ch.MusicRefs = refs
	return nil
}

// fakeTurnRepo 内存轮次仓储
type fakeTurnRepo struct {
	mu     sync.Mutex
	turns  []*entity.Turn
	nextID int
}

func (r *fakeTurnRepo) Append(_ context.Context, turn *entity.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	turn.ID = fmt.Sprintf("turn-%d", r.nextID)
	clone := *turn
	r.turns = append(r.turns, &clone)
	return nil
}

func (r *fakeTurnRepo) ListByChapter(_ context.Context, chapterID string) ([]*entity.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Turn
	for _, t := range r.turns {
		if t.ChapterID == chapterID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeTurnRepo) ListUnclassified(_ context.Context, chapterID string) ([]*entity.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Turn
	for _, t := range r.turns {
		if t.ChapterID == chapterID && !t.HasEmotion() {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeTurnRepo) MaxSeqNum(_ context.Context, chapterID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, t := range r.turns {
		if t.ChapterID == chapterID && t.SeqNum > max {
			max = t.SeqNum
		}
	}
	return max, nil
}

func (r *fakeTurnRepo) AttachEmotion(_ context.Context, turnID string, vec entity.EmotionVector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns {
		if t.ID == turnID {
			t.Emotion = vec
			return nil
		}
	}
	return errors.New("turn not found")
}

// fakeJobRepo 内存任务仓储
type fakeJobRepo struct {
	mu     sync.Mutex
	jobs   map[string]*entity.Job
	nextID int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*entity.Job)}
}

func (r *fakeJobRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	job.ID = fmt.Sprintf("job-%d", r.nextID)
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (r *fakeJobRepo) MarkRunning(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Start()
	}
	return nil
}

func (r *fakeJobRepo) UpdateProgress(_ context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Progress = progress
	}
	return nil
}

func (r *fakeJobRepo) SetResult(_ context.Context, id string, result json.RawMessage, errCode, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	if errCode == "" {
		job.Complete(result)
	} else {
		job.Fail(errCode, errMsg)
	}
	return nil
}

func (r *fakeJobRepo) IncrRetry(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.RetryCount++
	}
	return nil
}

// fakeGenerator 可编程的生成服务
type fakeGenerator struct {
	mu            sync.Mutex
	generateCalls int
	failGenerate  int
	generateErr   error
	text          string
	summary       string
}

func (g *fakeGenerator) Generate(_ context.Context, _ *llm.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generateCalls++
	if g.failGenerate > 0 {
		g.failGenerate--
		return "", g.generateErr
	}
	return g.text, nil
}

func (g *fakeGenerator) Summarize(_ context.Context, _ string) (string, error) {
	return g.summary, nil
}

// fakeClassifier 固定输出的分类服务
type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	vec   entity.EmotionVector
	err   error
}

func (c *fakeClassifier) Classify(_ context.Context, _ string) (entity.EmotionVector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make(entity.EmotionVector, len(c.vec))
	for k, v := range c.vec {
		out[k] = v
	}
	return out, nil
}

// fakeRefRepo 内存参考数据仓储
type fakeRefRepo struct {
	docs  []*entity.GenreRequirementDoc
	music []*entity.MusicItem
}

func (r *fakeRefRepo) ListAll(_ context.Context) ([]*entity.GenreRequirementDoc, error) {
	return r.docs, nil
}

func (r *fakeRefRepo) UpsertBatch(_ context.Context, _ []*entity.GenreRequirementDoc) error {
	return nil
}

type fakeMusicRepo struct {
	items []*entity.MusicItem
}

func (r *fakeMusicRepo) ListAll(_ context.Context) ([]*entity.MusicItem, error) {
	return r.items, nil
}

func (r *fakeMusicRepo) UpsertBatch(_ context.Context, _ []*entity.MusicItem) error {
	return nil
}

type testEnv struct {
	dispatcher *Dispatcher
	books      *fakeBookRepo
	chapters   *fakeChapterRepo
	turns      *fakeTurnRepo
	jobs       *fakeJobRepo
	generator  *fakeGenerator
	classifier *fakeClassifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	books := &fakeBookRepo{books: map[string]*entity.Book{
		"book-1": {ID: "book-1", UserID: "user-1", Title: "长夜", Genre: "fantasy"},
	}}
	chapters := &fakeChapterRepo{chapters: make(map[string]*entity.Chapter)}
	turns := &fakeTurnRepo{}
	jobs := newFakeJobRepo()

	docRepo := &fakeRefRepo{docs: []*entity.GenreRequirementDoc{
		{ID: "f-1", Genre: "fantasy", Content: "魔法体系要有明确的代价与限制"},
	}}
	musicRepo := &fakeMusicRepo{items: []*entity.MusicItem{
		{ID: "m-joy", Title: "Sunny", Artist: "A", Features: recommend.DefaultWeightTable()[entity.EmotionJoy]},
		{ID: "m-sad", Title: "Rainy", Artist: "B", Features: recommend.DefaultWeightTable()[entity.EmotionSadness]},
	}}

	store, err := feature.Load(context.Background(), docRepo, musicRepo, recommend.DefaultWeightTable())
	if err != nil {
		t.Fatalf("feature.Load() error = %v", err)
	}

	generator := &fakeGenerator{text: "于是主角踏入了迷雾森林。", summary: "主角进入森林并遭遇伏击。"}
	classifier := &fakeClassifier{vec: entity.EmotionVector{entity.EmotionJoy: 0.7, entity.EmotionAnxiety: 0.2}}

	d := NewDispatcher(Options{
		Books:      books,
		Chapters:   chapters,
		Turns:      turns,
		Jobs:       jobs,
		Lifecycle:  lifecycle.NewManager(chapters, turns, lifecycle.NewLocalBookLease(time.Second), 5*time.Minute),
		Store:      store,
		Index:      retrieval.BuildIndex(store.Docs(), retrieval.DefaultConfig()),
		Builder:    prompt.NewBuilder(6000, 0.5),
		Engine:     recommend.NewEngine(store.WeightTable(), 5),
		Generator:  generator,
		Classifier: classifier,
		Retry: config.RetryConfig{
			Attempts:       3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		TopK:                3,
		ClassifyConcurrency: 2,
	})

	return &testEnv{
		dispatcher: d,
		books:      books,
		chapters:   chapters,
		turns:      turns,
		jobs:       jobs,
		generator:  generator,
		classifier: classifier,
	}
}

func TestDispatchValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *Request
	}{
		{"未知任务类型", &Request{Kind: "unknown", UserID: "user-1", BookID: "book-1"}},
		{"缺少用户", &Request{Kind: entity.JobKindGenerateChapter, BookID: "book-1", UserMessage: "继续"}},
		{"缺少书籍", &Request{Kind: entity.JobKindGenerateChapter, UserID: "user-1", UserMessage: "继续"}},
		{"续写缺少消息", &Request{Kind: entity.JobKindGenerateChapter, UserID: "user-1", BookID: "book-1"}},
		{"分类缺少章节", &Request{Kind: entity.JobKindClassifyTurns, UserID: "user-1", BookID: "book-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.dispatcher.Dispatch(ctx, tt.req)
			if got.Succeeded() {
				t.Fatal("expected failure envelope")
			}
			if got.Code != http.StatusBadRequest {
				t.Errorf("Code = %d, want %d", got.Code, http.StatusBadRequest)
			}
			if got.ErrorCode != string(apperrors.CodeInvalidParam) {
				t.Errorf("ErrorCode = %s, want %s", got.ErrorCode, apperrors.CodeInvalidParam)
			}
		})
	}
}

func TestDispatchGenerate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "主角决定进入森林",
	})
	if !got.Succeeded() {
		t.Fatalf("Dispatch() failed: %s %s", got.ErrorCode, got.Message)
	}
	if got.Code != 0 {
		t.Errorf("Code = %d, want 0", got.Code)
	}

	var result GenerateResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if result.ChapterID == "" || result.UserTurn == "" || result.StoryTurn == "" {
		t.Errorf("result missing IDs: %+v", result)
	}
	if result.Text != env.generator.text {
		t.Errorf("Text = %q, want %q", result.Text, env.generator.text)
	}

	// 用户轮与生成轮按顺序落库
	turns, _ := env.turns.ListByChapter(ctx, result.ChapterID)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Speaker != entity.SpeakerUser || turns[1].Speaker != entity.SpeakerGenerator {
		t.Errorf("turn speakers = %s, %s", turns[0].Speaker, turns[1].Speaker)
	}

	// 再次续写复用同一章节
	second := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "继续",
	})
	if !second.Succeeded() {
		t.Fatalf("second Dispatch() failed: %s", second.Message)
	}
	var secondResult GenerateResult
	_ = json.Unmarshal(second.Payload, &secondResult)
	if secondResult.ChapterID != result.ChapterID {
		t.Errorf("expected same chapter %s, got %s", result.ChapterID, secondResult.ChapterID)
	}
}

func TestDispatchGenerateOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("他人书籍拒绝", func(t *testing.T) {
		got := env.dispatcher.Dispatch(ctx, &Request{
			Kind:        entity.JobKindGenerateChapter,
			UserID:      "user-2",
			BookID:      "book-1",
			UserMessage: "继续",
		})
		if got.Succeeded() || got.Code != http.StatusForbidden {
			t.Errorf("envelope = %+v, want 403", got)
		}
	})

	t.Run("书籍不存在", func(t *testing.T) {
		got := env.dispatcher.Dispatch(ctx, &Request{
			Kind:        entity.JobKindGenerateChapter,
			UserID:      "user-1",
			BookID:      "missing",
			UserMessage: "继续",
		})
		if got.Succeeded() || got.Code != http.StatusNotFound {
			t.Errorf("envelope = %+v, want 404", got)
		}
		if got.ErrorCode != string(apperrors.CodeBookNotFound) {
			t.Errorf("ErrorCode = %s, want %s", got.ErrorCode, apperrors.CodeBookNotFound)
		}
	})
}

func TestDispatchGenerateRetriesTransient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 前两次瞬时失败，第三次成功
	env.generator.failGenerate = 2
	env.generator.generateErr = apperrors.ErrGenerationUnavailable

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "继续",
	})
	if !got.Succeeded() {
		t.Fatalf("expected success after retries, got %s: %s", got.ErrorCode, got.Message)
	}
	if env.generator.generateCalls != 3 {
		t.Errorf("generate calls = %d, want 3", env.generator.generateCalls)
	}
}

func TestDispatchGenerateNoRetryOnPermanent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.generator.failGenerate = 2
	env.generator.generateErr = apperrors.ErrContentPolicy

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "继续",
	})
	if got.Succeeded() {
		t.Fatal("expected failure envelope")
	}
	if got.ErrorCode != string(apperrors.CodeContentPolicy) {
		t.Errorf("ErrorCode = %s, want %s", got.ErrorCode, apperrors.CodeContentPolicy)
	}
	// 永久错误不重试
	if env.generator.generateCalls != 1 {
		t.Errorf("generate calls = %d, want 1", env.generator.generateCalls)
	}
}

func TestDispatchRecommend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "主角走进森林",
	})
	if !gen.Succeeded() {
		t.Fatalf("generate failed: %s", gen.Message)
	}
	var genResult GenerateResult
	_ = json.Unmarshal(gen.Payload, &genResult)

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:   entity.JobKindRecommendMusic,
		UserID: "user-1",
		BookID: "book-1",
	})
	if !got.Succeeded() {
		t.Fatalf("recommend failed: %s %s", got.ErrorCode, got.Message)
	}

	var result RecommendResult
	if err := json.Unmarshal(got.Payload, &result); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if result.ChapterID != genResult.ChapterID {
		t.Errorf("ChapterID = %s, want %s", result.ChapterID, genResult.ChapterID)
	}
	if result.Summary != env.generator.summary {
		t.Errorf("Summary = %q, want %q", result.Summary, env.generator.summary)
	}
	if len(result.Tracks) == 0 {
		t.Error("expected at least one recommended track")
	}
	if result.Emotion.Get(entity.EmotionJoy) == 0 {
		t.Error("emotion distribution missing joy")
	}
	// 分类服务主导情感为 joy，joy 权重曲目应排第一
	if result.Tracks[0].MusicID != "m-joy" {
		t.Errorf("top track = %s, want m-joy", result.Tracks[0].MusicID)
	}

	// 章节已关闭且摘要落库
	chapter, _ := env.chapters.GetByID(ctx, result.ChapterID)
	if chapter.Status != entity.ChapterStatusClosed {
		t.Errorf("chapter status = %s, want closed", chapter.Status)
	}
	if chapter.Summary == "" || len(chapter.MusicRefs) == 0 {
		t.Errorf("chapter summary data not persisted: %+v", chapter)
	}

	// 关闭后的章节不可重复收尾
	again := env.dispatcher.Dispatch(ctx, &Request{
		Kind:      entity.JobKindRecommendMusic,
		UserID:    "user-1",
		BookID:    "book-1",
		ChapterID: result.ChapterID,
	})
	if again.Succeeded() || again.Code != http.StatusConflict {
		t.Errorf("envelope = %+v, want 409", again)
	}
}

func TestDispatchRecommendNoActiveChapter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:   entity.JobKindRecommendMusic,
		UserID: "user-1",
		BookID: "book-1",
	})
	if got.Succeeded() || got.ErrorCode != string(apperrors.CodeChapterNotFound) {
		t.Errorf("envelope = %+v, want chapter not found", got)
	}
}

func TestDispatchClassify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen := env.dispatcher.Dispatch(ctx, &Request{
		Kind:        entity.JobKindGenerateChapter,
		UserID:      "user-1",
		BookID:      "book-1",
		UserMessage: "继续",
	})
	var genResult GenerateResult
	_ = json.Unmarshal(gen.Payload, &genResult)

	got := env.dispatcher.Dispatch(ctx, &Request{
		Kind:      entity.JobKindClassifyTurns,
		UserID:    "user-1",
		BookID:    "book-1",
		ChapterID: genResult.ChapterID,
	})
	if !got.Succeeded() {
		t.Fatalf("classify failed: %s", got.Message)
	}

	var result ClassifyResult
	_ = json.Unmarshal(got.Payload, &result)
	if result.Classified != 2 {
		t.Errorf("Classified = %d, want 2", result.Classified)
	}

	// 分类是幂等操作，再次执行无待分类轮次
	again := env.dispatcher.Dispatch(ctx, &Request{
		Kind:      entity.JobKindClassifyTurns,
		UserID:    "user-1",
		BookID:    "book-1",
		ChapterID: genResult.ChapterID,
	})
	var againResult ClassifyResult
	_ = json.Unmarshal(again.Payload, &againResult)
	if againResult.Classified != 0 {
		t.Errorf("second Classified = %d, want 0", againResult.Classified)
	}
}

func TestHandleJobMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("畸形消息确认不重投", func(t *testing.T) {
		msg := &messaging.Message{ID: "1-0", Payload: json.RawMessage(`{invalid`)}
		if err := env.dispatcher.HandleJobMessage(ctx, msg); err != nil {
			t.Errorf("expected nil for malformed payload, got %v", err)
		}
	})

	t.Run("成功执行落库任务结果", func(t *testing.T) {
		record := entity.NewJob("user-1", "book-1", "", entity.JobKindGenerateChapter, nil)
		_ = env.jobs.Create(ctx, record)

		payload, _ := json.Marshal(&messaging.JobMessage{
			JobID:       record.ID,
			UserID:      "user-1",
			BookID:      "book-1",
			Kind:        entity.JobKindGenerateChapter,
			UserMessage: "继续",
		})
		msg := &messaging.Message{ID: "1-1", Payload: payload}

		if err := env.dispatcher.HandleJobMessage(ctx, msg); err != nil {
			t.Fatalf("HandleJobMessage() error = %v", err)
		}

		job, _ := env.jobs.GetByID(ctx, record.ID)
		if job.Status != entity.JobStatusCompleted {
			t.Errorf("job status = %s, want completed", job.Status)
		}
		if len(job.OutputResult) == 0 {
			t.Error("job output result not recorded")
		}
	})

	t.Run("永久失败落库后确认", func(t *testing.T) {
		record := entity.NewJob("user-2", "book-1", "", entity.JobKindGenerateChapter, nil)
		_ = env.jobs.Create(ctx, record)

		// user-2 无权访问 book-1，产生不可重试的 forbidden
		payload, _ := json.Marshal(&messaging.JobMessage{
			JobID:       record.ID,
			UserID:      "user-2",
			BookID:      "book-1",
			Kind:        entity.JobKindGenerateChapter,
			UserMessage: "继续",
		})
		msg := &messaging.Message{ID: "1-2", Payload: payload}

		if err := env.dispatcher.HandleJobMessage(ctx, msg); err != nil {
			t.Errorf("expected nil for permanent failure, got %v", err)
		}

		job, _ := env.jobs.GetByID(ctx, record.ID)
		if job.Status != entity.JobStatusFailed {
			t.Errorf("job status = %s, want failed", job.Status)
		}
		if job.ErrorCode != string(apperrors.CodeForbidden) {
			t.Errorf("job error code = %s, want %s", job.ErrorCode, apperrors.CodeForbidden)
		}
	})

	t.Run("可重试失败返回错误触发重投", func(t *testing.T) {
		env := newTestEnv(t)
		env.generator.failGenerate = 10
		env.generator.generateErr = apperrors.ErrGenerationUnavailable

		record := entity.NewJob("user-1", "book-1", "", entity.JobKindGenerateChapter, nil)
		_ = env.jobs.Create(ctx, record)

		payload, _ := json.Marshal(&messaging.JobMessage{
			JobID:       record.ID,
			UserID:      "user-1",
			BookID:      "book-1",
			Kind:        entity.JobKindGenerateChapter,
			UserMessage: "继续",
		})
		msg := &messaging.Message{ID: "1-3", Payload: payload}

		err := env.dispatcher.HandleJobMessage(ctx, msg)
		if err == nil {
			t.Fatal("expected error for retryable failure")
		}
		if !apperrors.IsRetryable(err) {
			t.Errorf("returned error not retryable: %v", err)
		}

		job, _ := env.jobs.GetByID(ctx, record.ID)
		if job.RetryCount != 1 {
			t.Errorf("retry count = %d, want 1", job.RetryCount)
		}
	})
}

func TestEnvelopeMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"参数错误", apperrors.ErrInvalidParam, http.StatusBadRequest},
		{"状态冲突", apperrors.ErrChapterNotOpen, http.StatusConflict},
		{"情感数据未就绪", apperrors.ErrNoEmotionData, http.StatusServiceUnavailable},
		{"退化向量", apperrors.ErrDegenerateVector, http.StatusUnprocessableEntity},
		{"提示词超限", apperrors.ErrPromptTooLarge, http.StatusRequestEntityTooLarge},
		{"响应异常", apperrors.ErrMalformedResponse, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := failEnvelope(tt.err)
			if env.Status != "error" || env.Code != tt.wantCode {
				t.Errorf("envelope = {%s, %d}, want {error, %d}", env.Status, env.Code, tt.wantCode)
			}
		})
	}

	t.Run("带详情的错误拼入消息", func(t *testing.T) {
		env := failEnvelope(apperrors.ErrInvalidParam.WithDetail("user_id is required"))
		if env.Message != "invalid parameter: user_id is required" {
			t.Errorf("Message = %q", env.Message)
		}
	})

	t.Run("成功信封", func(t *testing.T) {
		env := okEnvelope(map[string]string{"hello": "world"})
		if env.Status != "success" {
			t.Errorf("Status = %q, want %q", env.Status, "success")
		}
		if !env.Succeeded() || env.Code != 0 {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("请求序列化使用 job_kind 字段", func(t *testing.T) {
		data, err := json.Marshal(&Request{Kind: entity.JobKindGenerateChapter, UserID: "user-1", BookID: "book-1"})
		if err != nil {
			t.Fatal(err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatal(err)
		}
		if _, ok := fields["job_kind"]; !ok {
			t.Errorf("serialized request missing job_kind field: %s", data)
		}
		if _, ok := fields["kind"]; ok {
			t.Errorf("serialized request carries legacy kind field: %s", data)
		}
	})
}

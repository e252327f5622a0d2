// Package dispatch 提供任务分发与执行
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storytune-api/internal/application/feature"
	"storytune-api/internal/application/lifecycle"
	"storytune-api/internal/application/prompt"
	"storytune-api/internal/application/recommend"
	"storytune-api/internal/application/retrieval"
	"storytune-api/internal/config"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/domain/repository"
	"storytune-api/internal/infrastructure/llm"
	"storytune-api/internal/infrastructure/messaging"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/logger"
	"storytune-api/pkg/metrics"
)

var tracer = otel.Tracer("dispatch")

// Generator 故事生成服务接口
type Generator interface {
	Generate(ctx context.Context, req *llm.GenerateRequest) (string, error)
	Summarize(ctx context.Context, content string) (string, error)
}

// Classifier 情感分类服务接口
type Classifier interface {
	Classify(ctx context.Context, text string) (entity.EmotionVector, error)
}

// Options 分发器依赖
type Options struct {
	Books      repository.BookRepository
	Chapters   repository.ChapterRepository
	Turns      repository.TurnRepository
	Jobs       repository.JobRepository
	Lifecycle  *lifecycle.Manager
	Store      *feature.Store
	Index      *retrieval.Index
	Builder    *prompt.Builder
	Engine     *recommend.Engine
	Generator  Generator
	Classifier Classifier
	// Producer 为空时不派生异步分类任务（同步路径在推荐时兜底）
	Producer *messaging.Producer

	Retry config.RetryConfig
	// TopK 题材语料召回条数
	TopK int
	// ClassifyConcurrency 分类请求并发上限
	ClassifyConcurrency int
}

// Dispatcher 任务分发器
// 以任务类型为入口派发到具体执行流程，并把结果统一封装为信封。
// 外部服务的瞬时失败带退避重试；状态冲突与永久失败立即上抛。
type Dispatcher struct {
	books      repository.BookRepository
	chapters   repository.ChapterRepository
	turns      repository.TurnRepository
	jobs       repository.JobRepository
	lifecycle  *lifecycle.Manager
	store      *feature.Store
	index      *retrieval.Index
	builder    *prompt.Builder
	engine     *recommend.Engine
	generator  Generator
	classifier Classifier
	producer   *messaging.Producer

	retry               config.RetryConfig
	topK                int
	classifyConcurrency int
}

// NewDispatcher 创建任务分发器
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Retry.Attempts == 0 {
		opts.Retry.Attempts = 3
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if opts.Retry.MaxBackoff <= 0 {
		opts.Retry.MaxBackoff = 10 * time.Second
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.ClassifyConcurrency <= 0 {
		opts.ClassifyConcurrency = 4
	}

	return &Dispatcher{
		books:               opts.Books,
		chapters:            opts.Chapters,
		turns:               opts.Turns,
		jobs:                opts.Jobs,
		lifecycle:           opts.Lifecycle,
		store:               opts.Store,
		index:               opts.Index,
		builder:             opts.Builder,
		engine:              opts.Engine,
		generator:           opts.Generator,
		classifier:          opts.Classifier,
		producer:            opts.Producer,
		retry:               opts.Retry,
		topK:                opts.TopK,
		classifyConcurrency: opts.ClassifyConcurrency,
	}
}

// Dispatch 执行任务并返回结果信封
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Envelope {
	ctx, span := tracer.Start(ctx, "dispatch.Dispatch",
		trace.WithAttributes(
			attribute.String("job.kind", string(req.Kind)),
			attribute.String("book.id", req.BookID),
		))
	defer span.End()

	start := time.Now()
	env := d.dispatch(ctx, req)

	outcome := "success"
	if !env.Succeeded() {
		outcome = "error"
		span.SetAttributes(attribute.String("job.error_code", env.ErrorCode))
	}
	metrics.JobsTotal.WithLabelValues(string(req.Kind), outcome).Inc()
	metrics.JobDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())

	return env
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) *Envelope {
	if err := req.Validate(); err != nil {
		return failEnvelope(err)
	}

	ctx = logger.WithContext(ctx, logger.UserIDKey, req.UserID)
	ctx = logger.WithContext(ctx, logger.BookIDKey, req.BookID)

	switch req.Kind {
	case entity.JobKindGenerateChapter:
		result, err := d.executeGenerate(ctx, req)
		if err != nil {
			return failEnvelope(err)
		}
		return okEnvelope(result)
	case entity.JobKindRecommendMusic:
		result, err := d.executeRecommend(ctx, req)
		if err != nil {
			return failEnvelope(err)
		}
		return okEnvelope(result)
	case entity.JobKindClassifyTurns:
		result, err := d.executeClassify(ctx, req)
		if err != nil {
			return failEnvelope(err)
		}
		return okEnvelope(result)
	default:
		return failEnvelope(apperrors.ErrInvalidParam.WithDetail("unknown job kind: " + string(req.Kind)))
	}
}

// HandleJobMessage 消费队列任务消息
// 返回错误仅用于触发消费侧重投，因此只有可重试失败会返回非 nil；
// 永久失败落库后确认消息。
func (d *Dispatcher) HandleJobMessage(ctx context.Context, msg *messaging.Message) error {
	var job messaging.JobMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		logger.Error(ctx, "malformed job message", err, "message_id", msg.ID)
		return nil
	}

	ctx = logger.WithContext(ctx, logger.JobIDKey, job.JobID)

	if d.jobs != nil && job.JobID != "" {
		if err := d.jobs.MarkRunning(ctx, job.JobID); err != nil {
			logger.Error(ctx, "failed to mark job running", err)
		}
		if err := d.jobs.UpdateProgress(ctx, job.JobID, 10); err != nil {
			logger.Warn(ctx, "failed to update job progress", "error", err)
		}
	}

	env := d.Dispatch(ctx, &Request{
		Kind:        job.Kind,
		UserID:      job.UserID,
		BookID:      job.BookID,
		ChapterID:   job.ChapterID,
		UserMessage: job.UserMessage,
	})

	d.recordJobResult(ctx, job.JobID, env)

	if !env.Succeeded() && apperrors.New(apperrors.ErrorCode(env.ErrorCode), "").Retryable {
		if d.jobs != nil && job.JobID != "" {
			if err := d.jobs.IncrRetry(ctx, job.JobID); err != nil {
				logger.Error(ctx, "failed to increment job retry count", err)
			}
		}
		return apperrors.New(apperrors.ErrorCode(env.ErrorCode), env.Message)
	}
	return nil
}

// recordJobResult 把信封落库到任务记录
func (d *Dispatcher) recordJobResult(ctx context.Context, jobID string, env *Envelope) {
	if d.jobs == nil || jobID == "" {
		return
	}

	var err error
	if env.Succeeded() {
		err = d.jobs.SetResult(ctx, jobID, env.Payload, "", "")
	} else {
		err = d.jobs.SetResult(ctx, jobID, nil, env.ErrorCode, env.Message)
	}
	if err != nil {
		logger.Error(ctx, "failed to record job result", err)
	}
}

// callExternal 带退避重试执行外部调用，仅瞬时错误触发重试
func callExternal[T any](ctx context.Context, d *Dispatcher, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(d.retry.Attempts),
		retry.Delay(d.retry.InitialBackoff),
		retry.MaxDelay(d.retry.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(apperrors.IsRetryable),
		retry.LastErrorOnly(true),
	)
}

// marshalInput 序列化任务入参（用于任务记录）
func marshalInput(req *Request) json.RawMessage {
	data, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	return data
}

// Package wire 提供依赖注入装配
package wire

import (
	"context"

	"storytune-api/internal/application/dispatch"
	"storytune-api/internal/application/feature"
	"storytune-api/internal/application/lifecycle"
	"storytune-api/internal/application/prompt"
	"storytune-api/internal/application/recommend"
	"storytune-api/internal/application/retrieval"
	"storytune-api/internal/config"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/infrastructure/classifier"
	"storytune-api/internal/infrastructure/llm"
	"storytune-api/internal/infrastructure/messaging"
	"storytune-api/internal/infrastructure/persistence/postgres"
	"storytune-api/internal/infrastructure/persistence/redis"
	"storytune-api/internal/interfaces/http/handler"
	"storytune-api/internal/interfaces/http/router"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	PgClient  *postgres.Client
	TxManager *postgres.TxManager

	BookRepo     *postgres.BookRepository
	ChapterRepo  *postgres.ChapterRepository
	TurnRepo     *postgres.TurnRepository
	GenreDocRepo *postgres.GenreDocRepository
	MusicRepo    *postgres.MusicRepository
	JobRepo      *postgres.JobRepository

	RedisClient *redis.Client
	BookLease   *redis.BookLease
	Producer    *messaging.Producer
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		pgClient.Close()
		return nil, nil, err
	}

	cleanup := func() {
		redisClient.Close()
		pgClient.Close()
	}

	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}

	dl := &DataLayer{
		PgClient:     pgClient,
		TxManager:    postgres.NewTxManager(pgClient),
		BookRepo:     postgres.NewBookRepository(pgClient),
		ChapterRepo:  postgres.NewChapterRepository(pgClient),
		TurnRepo:     postgres.NewTurnRepository(pgClient),
		GenreDocRepo: postgres.NewGenreDocRepository(pgClient),
		MusicRepo:    postgres.NewMusicRepository(pgClient),
		JobRepo:      postgres.NewJobRepository(pgClient),
		RedisClient:  redisClient,
		BookLease:    redis.NewBookLease(redisClient, cfg.Lifecycle.LeaseTTL, cfg.Lifecycle.LeaseWait),
		Producer:     messaging.NewProducer(redisClient.Redis(), maxLen),
	}
	return dl, cleanup, nil
}

// CoreLayer 领域服务容器
type CoreLayer struct {
	Store      *feature.Store
	Index      *retrieval.Index
	Builder    *prompt.Builder
	Engine     *recommend.Engine
	Lifecycle  *lifecycle.Manager
	Generator  *llm.Client
	Classifier *classifier.Client
	Dispatcher *dispatch.Dispatcher
}

// InitializeCoreLayer 初始化领域服务
// 参考数据（语料、曲库、权重表）启动时装载一次，检索索引同时构建。
func InitializeCoreLayer(ctx context.Context, cfg *config.Config, dl *DataLayer) (*CoreLayer, error) {
	store, err := feature.Load(ctx, dl.GenreDocRepo, dl.MusicRepo, recommend.DefaultWeightTable())
	if err != nil {
		return nil, err
	}

	index := retrieval.BuildIndex(store.Docs(), retrieval.Config{
		K1: cfg.Retrieval.K1,
		B:  cfg.Retrieval.B,
	})

	builder := prompt.NewBuilder(cfg.Prompt.BudgetRunes, cfg.Prompt.PriorShare)
	engine := recommend.NewEngine(store.WeightTable(), cfg.Recommend.TopN)
	lm := lifecycle.NewManager(dl.ChapterRepo, dl.TurnRepo, dl.BookLease, cfg.Lifecycle.StuckAfter)
	generator := llm.NewClient(&cfg.Generation)
	clf := classifier.NewClient(&cfg.Classifier)

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Books:               dl.BookRepo,
		Chapters:            dl.ChapterRepo,
		Turns:               dl.TurnRepo,
		Jobs:                dl.JobRepo,
		Lifecycle:           lm,
		Store:               store,
		Index:               index,
		Builder:             builder,
		Engine:              engine,
		Generator:           generator,
		Classifier:          clf,
		Producer:            dl.Producer,
		Retry:               cfg.Dispatch.Retry,
		TopK:                cfg.Retrieval.TopK,
		ClassifyConcurrency: cfg.Classifier.Concurrency,
	})

	return &CoreLayer{
		Store:      store,
		Index:      index,
		Builder:    builder,
		Engine:     engine,
		Lifecycle:  lm,
		Generator:  generator,
		Classifier: clf,
		Dispatcher: dispatcher,
	}, nil
}

// App API 服务应用
type App struct {
	Data   *DataLayer
	Core   *CoreLayer
	Router *router.Router
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	core, err := InitializeCoreLayer(ctx, cfg, dl)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(dl.PgClient, dl.RedisClient),
		Book:   handler.NewBookHandler(dl.BookRepo, dl.ChapterRepo, core.Lifecycle),
		Story:  handler.NewStoryHandler(core.Dispatcher),
		Job:    handler.NewJobHandler(dl.JobRepo, dl.Producer, dl.RedisClient),
	}

	return &App{
		Data:   dl,
		Core:   core,
		Router: router.New(cfg, handlers),
	}, cleanup, nil
}

// Worker 任务进程应用
type Worker struct {
	Data      *DataLayer
	Core      *CoreLayer
	Consumers []*messaging.Consumer
}

// InitializeWorker 初始化任务进程
// 每个流一个消费者，均注册到同一分发器。
func InitializeWorker(ctx context.Context, cfg *config.Config, consumerName string) (*Worker, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	core, err := InitializeCoreLayer(ctx, cfg, dl)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	backoff := messaging.BackoffConfig{
		Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
		Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
		Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
	}

	storyConsumer := messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamStoryJobs,
		Group:         messaging.ConsumerGroupStoryWorker,
		ConsumerName:  consumerName,
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff:       backoff,
	})
	storyConsumer.RegisterHandler(string(entity.JobKindGenerateChapter), core.Dispatcher.HandleJobMessage)
	storyConsumer.RegisterHandler(string(entity.JobKindRecommendMusic), core.Dispatcher.HandleJobMessage)

	classifyConsumer := messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamEmotionClassify,
		Group:         messaging.ConsumerGroupClassifyWorker,
		ConsumerName:  consumerName,
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff:       backoff,
	})
	classifyConsumer.RegisterHandler(string(entity.JobKindClassifyTurns), core.Dispatcher.HandleJobMessage)

	return &Worker{
		Data:      dl,
		Core:      core,
		Consumers: []*messaging.Consumer{storyConsumer, classifyConsumer},
	}, cleanup, nil
}

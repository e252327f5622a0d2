// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Classifier    ClassifierConfig    `yaml:"classifier" mapstructure:"classifier"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Prompt        PromptConfig        `yaml:"prompt" mapstructure:"prompt"`
	Recommend     RecommendConfig     `yaml:"recommend" mapstructure:"recommend"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle" mapstructure:"lifecycle"`
	Dispatch      DispatchConfig      `yaml:"dispatch" mapstructure:"dispatch"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap" mapstructure:"bootstrap"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// GenerationConfig 文本生成服务配置（黑盒补全 API）
type GenerationConfig struct {
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
}

// ClassifierConfig 情感分类服务配置
type ClassifierConfig struct {
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// RetrievalConfig 检索打分配置
type RetrievalConfig struct {
	// K1 词频饱和常数
	K1 float64 `yaml:"k1" mapstructure:"k1"`
	// B 文档长度归一化系数
	B float64 `yaml:"b" mapstructure:"b"`
	// TopK 默认召回条数
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// PromptConfig 提示词构造配置
type PromptConfig struct {
	// BudgetRunes 单次生成请求的总预算（按 rune 计）
	BudgetRunes int `yaml:"budget_runes" mapstructure:"budget_runes"`
	// PriorShare 预算扣除用户消息后，历史文本可占用的最大比例
	PriorShare float64 `yaml:"prior_share" mapstructure:"prior_share"`
}

// RecommendConfig 音乐推荐配置
type RecommendConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// LifecycleConfig 章节状态机配置
type LifecycleConfig struct {
	// LeaseTTL 书级独占租约的过期时间
	LeaseTTL time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	// LeaseWait 获取租约的最长等待时间
	LeaseWait time.Duration `yaml:"lease_wait" mapstructure:"lease_wait"`
	// StuckAfter 章节停留在 summarizing 超过该时长后允许重驱动
	StuckAfter time.Duration `yaml:"stuck_after" mapstructure:"stuck_after"`
}

// DispatchConfig 任务分发配置
type DispatchConfig struct {
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig 外部调用重试配置
type RetryConfig struct {
	Attempts       uint          `yaml:"attempts" mapstructure:"attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen        int64              `yaml:"max_len" mapstructure:"max_len"`
	BlockTimeout  time.Duration      `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval time.Duration      `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit    int                `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff  RetryBackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// RetryBackoffConfig 消费重试退避配置
type RetryBackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// BootstrapConfig 初始化数据配置
type BootstrapConfig struct {
	// SeedDir 题材要求语料与音乐曲库种子文件目录
	SeedDir string `yaml:"seed_dir" mapstructure:"seed_dir"`
}

// Package llm 提供故事生成服务客户端
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storytune-api/internal/config"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/metrics"
)

// Client 故事生成服务客户端
// 生成服务是黑盒 HTTP 依赖：瞬时失败映射为可重试错误，
// 内容审核拒绝与畸形响应映射为不可重试错误。
type Client struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type generateRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	TokensUsed   int    `json:"tokens_used"`
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	System string
	Prompt string
}

// NewClient 创建生成服务客户端
func NewClient(cfg *config.GenerationConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate 生成章节续写文本
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	return c.call(ctx, "generate", "/generate", &generateRequest{
		Model:       c.model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

// Summarize 生成章节摘要
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	return c.call(ctx, "summarize", "/summarize", &generateRequest{
		Model:  c.model,
		Prompt: content,
	})
}

func (c *Client) call(ctx context.Context, operation, defaultPath string, req *generateRequest) (string, error) {
	start := time.Now()
	text, err := c.doCall(ctx, defaultPath, req)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ExternalCallsTotal.WithLabelValues("generation", operation, outcome).Inc()
	metrics.ExternalCallDuration.WithLabelValues("generation", operation).Observe(time.Since(start).Seconds())

	return text, err
}

func (c *Client) doCall(ctx context.Context, defaultPath string, req *generateRequest) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", apperrors.ErrMalformedResponse.WithError(err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	if endpoint == "" {
		return "", apperrors.ErrGenerationUnavailable.WithDetail("generation endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", apperrors.ErrGenerationUnavailable.WithError(err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return "", apperrors.ErrGenerationUnavailable.WithError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// 网络错误与超时均视为瞬时失败
		return "", apperrors.ErrGenerationUnavailable.WithError(err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusUnprocessableEntity:
		// 内容审核拒绝：重试无意义
		return "", apperrors.ErrContentPolicy
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return "", apperrors.ErrGenerationUnavailable.WithDetail(httpResp.Status)
	default:
		return "", apperrors.ErrMalformedResponse.WithDetail(httpResp.Status)
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", apperrors.ErrMalformedResponse.WithError(err)
	}
	if resp.FinishReason == "content_filter" {
		return "", apperrors.ErrContentPolicy
	}
	if resp.Text == "" {
		return "", apperrors.ErrMalformedResponse.WithDetail("empty generation text")
	}
	return resp.Text, nil
}

// Package classifier 提供情感分类服务客户端
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storytune-api/internal/config"
	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/metrics"
)

// Client 情感分类服务客户端
// 返回的概率分布在边界处做清洗：未知标签丢弃，分量截断到 [0,1]。
type Client struct {
	endpoint   string
	httpClient *http.Client
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// NewClient 创建分类服务客户端
func NewClient(cfg *config.ClassifierConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify 对单条文本做情感分类
func (c *Client) Classify(ctx context.Context, text string) (entity.EmotionVector, error) {
	start := time.Now()
	vec, err := c.doClassify(ctx, text)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ExternalCallsTotal.WithLabelValues("classifier", "classify", outcome).Inc()
	metrics.ExternalCallDuration.WithLabelValues("classifier", "classify").Observe(time.Since(start).Seconds())

	return vec, err
}

func (c *Client) doClassify(ctx context.Context, text string) (entity.EmotionVector, error) {
	reqBody, err := json.Marshal(&classifyRequest{Text: text})
	if err != nil {
		return nil, apperrors.ErrMalformedResponse.WithError(err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	if endpoint == "" {
		return nil, apperrors.ErrClassifierUnavailable.WithDetail("classifier endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, apperrors.ErrClassifierUnavailable.WithError(err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/classify"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperrors.ErrClassifierUnavailable.WithError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.ErrClassifierUnavailable.WithError(err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, apperrors.ErrClassifierUnavailable.WithDetail(httpResp.Status)
	default:
		return nil, apperrors.ErrMalformedResponse.WithDetail(httpResp.Status)
	}

	var resp classifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.ErrMalformedResponse.WithError(err)
	}
	if len(resp.Scores) == 0 {
		return nil, apperrors.ErrMalformedResponse.WithDetail("empty classifier scores")
	}

	vec := make(entity.EmotionVector, len(resp.Scores))
	for label, score := range resp.Scores {
		vec[entity.EmotionLabel(label)] = score
	}
	return vec.Clamp(), nil
}

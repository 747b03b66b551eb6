package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/logger"
)

// AIClientConfig AI 推理服务客户端配置
type AIClientConfig struct {
	Endpoint        string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// AIClient AI 推理服务 HTTP 客户端。超时、网络错误与 5xx 统一归为
// ErrTransientCollaborator；连续失败触发熔断，打开期间快速失败
type AIClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewAIClient 创建 AI 推理客户端
func NewAIClient(cfg AIClientConfig) *AIClient {
	httpClient := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ai-reasoning",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "Circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	})

	return &AIClient{http: httpClient, breaker: breaker}
}

// Analyze 请求 AI 推理服务对理赔上下文出具分析结论
func (c *AIClient) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Analysis, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var analysis domain.Analysis
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&analysis).
			Post("/analyze")
		if err != nil {
			return nil, fmt.Errorf("%w: ai service request failed: %v", domain.ErrTransientCollaborator, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: ai service returned %d", domain.ErrTransientCollaborator, resp.StatusCode())
		}
		return &analysis, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: ai circuit breaker open", domain.ErrTransientCollaborator)
		}
		return nil, err
	}
	return result.(*domain.Analysis), nil
}

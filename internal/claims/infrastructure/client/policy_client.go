package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
)

// PolicyClientConfig 保单存储服务客户端配置
type PolicyClientConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// PolicyClient 保单存储服务 HTTP 客户端。404 映射为 ErrPolicyNotFound，
// 其余失败归为可重试的暂时性失败
type PolicyClient struct {
	http *resty.Client
}

// NewPolicyClient 创建保单存储客户端
func NewPolicyClient(cfg PolicyClientConfig) *PolicyClient {
	return &PolicyClient{
		http: resty.New().
			SetBaseURL(cfg.Endpoint).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
	}
}

// GetPolicy 按 policyId 读取保单
func (c *PolicyClient) GetPolicy(ctx context.Context, policyID string) (*domain.Policy, error) {
	var policy domain.Policy
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&policy).
		SetPathParam("policyId", policyID).
		Get("/policies/{policyId}")
	if err != nil {
		return nil, fmt.Errorf("%w: policy store request failed: %v", domain.ErrTransientCollaborator, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, policyID)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: policy store returned %d", domain.ErrTransientCollaborator, resp.StatusCode())
	}
	return &policy, nil
}

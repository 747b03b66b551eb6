package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PolicyStatus 保单状态
type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "active"
	PolicyStatusLapsed    PolicyStatus = "lapsed"
	PolicyStatusCancelled PolicyStatus = "cancelled"
)

// Policy 保单，由保单存储服务持有，此处只读引用
type Policy struct {
	PolicyID      string          `json:"policy_id"`
	Status        PolicyStatus    `json:"status"`
	CoverageLimit decimal.Decimal `json:"coverage_limit"`
	Exclusions    []string        `json:"exclusions,omitempty"`
	// 保障期间，缺失时保障窗口规则跳过
	CoverageStart *time.Time `json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time `json:"coverage_end,omitempty"`
}

// PolicyStore 保单存储服务契约
type PolicyStore interface {
	// GetPolicy 按保单号读取保单，不存在时返回 ErrPolicyNotFound
	GetPolicy(ctx context.Context, policyID string) (*Policy, error)
}

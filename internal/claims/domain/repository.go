package domain

import (
	"context"
	"time"
)

// ClaimRepository 理赔持久化契约。按 claimId 的 CRUD 语义，
// 非终局状态字段 last-writer-wins，Decision 只追加
type ClaimRepository interface {
	CreateClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	UpdateClaimStatus(ctx context.Context, claimID string, status ClaimStatus) error

	// SaveFraudScore 追加新的评分记录，保留历史
	SaveFraudScore(ctx context.Context, score *FraudScore) error
	LatestFraudScore(ctx context.Context, claimID string) (*FraudScore, error)

	SaveValidationResult(ctx context.Context, result *ValidationResult) error
	LatestValidationResult(ctx context.Context, claimID string) (*ValidationResult, error)

	// SaveDecision 写入终局裁决；该理赔已有裁决时返回 ErrAlreadyDecided
	SaveDecision(ctx context.Context, decision *Decision) error
	GetDecision(ctx context.Context, claimID string) (*Decision, error)

	SaveAgentTask(ctx context.Context, task *AgentTask) error
	// DeleteAgentTasks 理赔终局后清理阶段任务，历史留在审计轨迹
	DeleteAgentTasks(ctx context.Context, claimID string) error

	AppendAuditEvent(ctx context.Context, event *AuditEvent) error
	ListAuditEvents(ctx context.Context, claimID string) ([]*AuditEvent, error)

	// Stats 仪表盘只读投影，从持久化的理赔与裁决推导
	Stats(ctx context.Context) (*DashboardStats, error)
}

// DashboardStats 仪表盘统计投影
type DashboardStats struct {
	ActiveClaims     int64            `json:"active_claims"`
	FraudDetected    int64            `json:"fraud_detected"`
	ApprovalRate     float64          `json:"approval_rate"`
	TotalPayout      string           `json:"total_payout"`
	AvgProcessing    time.Duration    `json:"-"`
	AvgProcessingStr string           `json:"processing_time"`
	RiskDistribution map[string]int64 `json:"risk_distribution"`
}

// Analysis AI 推理服务对一次理赔上下文的分析结论
type Analysis struct {
	// 0-100 软信号
	Signal int `json:"ai_signal"`
	// AI 报告的红旗
	RedFlags []string `json:"red_flags"`
	// 除外条款等软规则判定
	SoftRuleFindings []SoftRuleFinding `json:"soft_rule_verdicts"`
	// 该 agent 角色的建议
	Recommendation Recommendation `json:"recommendation"`
	// 叙述性推理
	Reasoning string `json:"reasoning"`
}

// AnalysisRequest AI 推理服务入参：理赔与保单上下文加角色视角
type AnalysisRequest struct {
	Role     Role              `json:"role"`
	Claim    *Claim            `json:"claim"`
	Policy   *Policy           `json:"policy"`
	Score    *FraudScore       `json:"fraud_score,omitempty"`
	Findings []SoftRuleFinding `json:"prior_findings,omitempty"`
}

// Analyzer AI 推理服务契约。超时与错误均视为可重试的暂时性失败，
// 测试中以确定性桩替代
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error)
}

// DecisionEvent 裁决事件负载
type DecisionEvent struct {
	ClaimID   string         `json:"claim_id"`
	Status    DecisionStatus `json:"status"`
	Reasoning string         `json:"reasoning"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventPublisher 领域事件发布契约
type EventPublisher interface {
	PublishDecisionMade(ctx context.Context, event DecisionEvent) error
}

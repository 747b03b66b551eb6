package application

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
)

// Router 裁决路由：从 (ValidationResult, FraudScore, ConsensusRecord)
// 到终局 Decision 的纯映射
type Router struct{}

// NewRouter 创建裁决路由
func NewRouter() *Router { return &Router{} }

// Route 计算终局裁决。共识率低于 0.5 时强制升级复核，
// 覆盖上游校验结论（对单阶段过度自信的熔断）。
func (r *Router) Route(claim *domain.Claim, policy *domain.Policy, result *PipelineResult) (*domain.Decision, error) {
	validation := result.Validation
	score := result.Score

	if validation == nil || score == nil {
		return nil, fmt.Errorf("%w: routing claim %s without validation or score", domain.ErrInconsistentState, claim.ClaimID)
	}

	switch {
	case validation.Validity == domain.ValidityInvalid:
		return &domain.Decision{
			ClaimID:         claim.ClaimID,
			Status:          domain.DecisionDenied,
			EstimatedPayout: decimal.NewNullDecimal(decimal.Zero),
			Reasoning:       "Hard rule failures: " + strings.Join(validation.HardRuleFailures, "; "),
		}, nil

	case result.Consensus != nil && result.Consensus.AgreementRatio < 0.5:
		return &domain.Decision{
			ClaimID: claim.ClaimID,
			Status:  domain.DecisionEscalated,
			Reasoning: fmt.Sprintf("Agent consensus below threshold (agreement %.2f); forced to manual review",
				result.Consensus.AgreementRatio),
		}, nil

	case validation.Validity == domain.ValidityNeedsReview:
		return &domain.Decision{
			ClaimID:   claim.ClaimID,
			Status:    domain.DecisionEscalated,
			Reasoning: r.reviewReasoning(score, validation),
		}, nil
	}

	// validity == valid：构造上保证仅低风险可达
	if score.RiskLevel != domain.RiskLevelLow {
		return nil, fmt.Errorf("%w: claim %s is valid but risk level is %s",
			domain.ErrInconsistentState, claim.ClaimID, score.RiskLevel)
	}

	payout := claim.Incident.ClaimedAmount
	if policy != nil && payout.GreaterThan(policy.CoverageLimit) {
		payout = policy.CoverageLimit
	}

	return &domain.Decision{
		ClaimID:         claim.ClaimID,
		Status:          domain.DecisionApproved,
		EstimatedPayout: decimal.NewNullDecimal(payout),
		Reasoning: fmt.Sprintf("All rule checks passed, fraud risk %s (score %d), consensus %s",
			score.RiskLevel, score.Score, consensusSummary(result.Consensus)),
	}, nil
}

// EscalateForStageFailure 协作方重试耗尽后的升级裁决，注明失败阶段
func (r *Router) EscalateForStageFailure(claimID string, failure *domain.StageFailureError) *domain.Decision {
	return &domain.Decision{
		ClaimID:   claimID,
		Status:    domain.DecisionEscalated,
		Reasoning: fmt.Sprintf("%s stage unavailable after exhausting retries; manual adjudication required", failure.Stage),
	}
}

func (r *Router) reviewReasoning(score *domain.FraudScore, validation *domain.ValidationResult) string {
	var reasons []string
	if score.RiskLevel != domain.RiskLevelLow {
		reasons = append(reasons, fmt.Sprintf("fraud risk %s (score %d)", score.RiskLevel, score.Score))
	}
	for _, f := range validation.SoftRuleFindings {
		if f.Verdict == domain.SoftRuleVerdictFail {
			reasons = append(reasons, fmt.Sprintf("soft rule %s failed: %s", f.Rule, f.Rationale))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "flagged for review")
	}
	return "Escalated for manual review: " + strings.Join(reasons, "; ")
}

func consensusSummary(c *domain.ConsensusRecord) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s (agreement %.2f)", c.FinalRecommendation, c.AgreementRatio)
}

package application

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
)

// IncidentData 出险报告原始入参
type IncidentData struct {
	Location       string          `json:"location"`
	DateTime       string          `json:"dateTime"`
	Description    string          `json:"description"`
	Injuries       bool            `json:"injuries"`
	PropertyDamage bool            `json:"propertyDamage"`
	ClaimedAmount  decimal.Decimal `json:"claimedAmount"`
}

// AnalyzeRequest 理赔分析请求
type AnalyzeRequest struct {
	IncidentData IncidentData `json:"incidentData"`
	PolicyID     string       `json:"policyId"`
	// 可选：对已有理赔重新分析。已裁决的理赔返回 AlreadyDecided
	ClaimID string `json:"claimId,omitempty"`
}

// FraudScoreDTO 响应中的欺诈评分
type FraudScoreDTO struct {
	Score      int      `json:"score"`
	RiskLevel  string   `json:"risk_level"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators"`
}

// AIAnalysisDTO 响应中的 AI 分析结论
type AIAnalysisDTO struct {
	Validity        string              `json:"validity"`
	Recommendation  string              `json:"recommendation"`
	EstimatedPayout decimal.NullDecimal `json:"estimated_payout"`
	RedFlags        []string            `json:"red_flags"`
	Reasoning       string              `json:"reasoning"`
}

// AnalyzeResponse 理赔分析响应
type AnalyzeResponse struct {
	ClaimID    string        `json:"claim_id"`
	Status     string        `json:"status"`
	FraudScore FraudScoreDTO `json:"fraud_score"`
	AIAnalysis AIAnalysisDTO `json:"ai_analysis"`
	CreatedAt  string        `json:"created_at"`
}

// ClaimDetail 按 claimId 查询的理赔详情
type ClaimDetail struct {
	Claim      *domain.Claim            `json:"claim"`
	FraudScore *domain.FraudScore       `json:"fraud_score,omitempty"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	Decision   *domain.Decision         `json:"decision,omitempty"`
	AuditTrail []*domain.AuditEvent     `json:"audit_trail,omitempty"`
}

func newFraudScoreDTO(score *domain.FraudScore) FraudScoreDTO {
	if score == nil {
		return FraudScoreDTO{Indicators: []string{}}
	}
	indicators := score.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	return FraudScoreDTO{
		Score:      score.Score,
		RiskLevel:  string(score.RiskLevel),
		Confidence: score.Confidence,
		Indicators: indicators,
	}
}

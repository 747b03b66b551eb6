package domain

import (
	"math"
	"time"
	"unicode/utf8"
)

// RiskLevel 欺诈风险等级
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// 结构化信号指示标签
const (
	IndicatorInjuries        = "injuries_reported"
	IndicatorPropertyDamage  = "property_damage"
	IndicatorLongDescription = "detailed_description"
	IndicatorComplete        = "location_and_time_present"
	IndicatorAIUnavailable   = "ai_unavailable"
)

// FraudScore 欺诈风险评分。创建后不可变，重评分产生新记录以保留历史
type FraudScore struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	ClaimID    string    `json:"-" gorm:"type:varchar(32);index;not null"`
	Score      int       `json:"score" gorm:"not null"`
	RiskLevel  RiskLevel `json:"risk_level" gorm:"type:varchar(10);not null"`
	Confidence float64   `json:"confidence" gorm:"not null"`
	Indicators []string  `json:"indicators" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"-"`
}

// TableName 指定表名
func (FraudScore) TableName() string { return "fraud_scores" }

// ScoringPolicy 评分策略常量。权重为既定产品策略，调整需产品确认
type ScoringPolicy struct {
	InjuryWeight       int
	PropertyWeight     int
	DescriptionWeight  int
	CompletenessWeight int
	DescriptionLength  int
	StructuralBlend    float64
	AIBlend            float64
	MediumScore        int
	HighScore          int
	BaseConfidence     float64
	FallbackConfidence float64
}

// DefaultScoringPolicy 返回缺省评分策略
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		InjuryWeight:       40,
		PropertyWeight:     30,
		DescriptionWeight:  20,
		CompletenessWeight: 10,
		DescriptionLength:  100,
		StructuralBlend:    0.6,
		AIBlend:            0.4,
		MediumScore:        30,
		HighScore:          70,
		BaseConfidence:     0.85,
		FallbackConfidence: 0.5,
	}
}

// RiskLevelFor 按阈值（含下界）推导风险等级
func (p ScoringPolicy) RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= p.HighScore:
		return RiskLevelHigh
	case score >= p.MediumScore:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ComputeStructuralScore 计算结构化信号加权分并返回触发的指示标签。
// 对同一输入结果确定且无副作用。
func (p ScoringPolicy) ComputeStructuralScore(incident IncidentReport) (int, []string) {
	score := 0
	indicators := make([]string, 0, 4)

	if incident.Injuries {
		score += p.InjuryWeight
		indicators = append(indicators, IndicatorInjuries)
	}
	if incident.PropertyDamage {
		score += p.PropertyWeight
		indicators = append(indicators, IndicatorPropertyDamage)
	}
	// 描述长度按字符计，多字节文本不膨胀
	if utf8.RuneCountInString(incident.Description) > p.DescriptionLength {
		score += p.DescriptionWeight
		indicators = append(indicators, IndicatorLongDescription)
	}
	if incident.Location != "" && !incident.OccurredAt.IsZero() {
		score += p.CompletenessWeight
		indicators = append(indicators, IndicatorComplete)
	}

	if score > 100 {
		score = 100
	}
	return score, indicators
}

// ComputeFraudScore 计算最终欺诈评分。aiSignal 为 nil 表示 AI 服务不可用：
// 此时仅用结构分，置信度降为回退值并追加 ai_unavailable 标签。
// redFlags 为 AI 报告的红旗，并入指示标签。
func (p ScoringPolicy) ComputeFraudScore(claimID string, incident IncidentReport, aiSignal *int, redFlags []string) FraudScore {
	structural, indicators := p.ComputeStructuralScore(incident)

	var final int
	confidence := p.BaseConfidence

	if aiSignal == nil {
		final = structural
		confidence = p.FallbackConfidence
		indicators = append(indicators, IndicatorAIUnavailable)
	} else {
		blended := p.StructuralBlend*float64(structural) + p.AIBlend*float64(*aiSignal)
		final = int(math.Round(blended))
		if final < 0 {
			final = 0
		}
		if final > 100 {
			final = 100
		}
	}

	indicators = append(indicators, redFlags...)

	return FraudScore{
		ClaimID:    claimID,
		Score:      final,
		RiskLevel:  p.RiskLevelFor(final),
		Confidence: confidence,
		Indicators: indicators,
	}
}

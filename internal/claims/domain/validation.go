package domain

import "time"

// Validity 校验结论
type Validity string

const (
	ValidityValid       Validity = "valid"
	ValidityInvalid     Validity = "invalid"
	ValidityNeedsReview Validity = "needs_review"
)

// SoftRuleVerdict 软规则单条判定
type SoftRuleVerdict string

const (
	SoftRuleVerdictPass SoftRuleVerdict = "pass"
	SoftRuleVerdictFail SoftRuleVerdict = "fail"
)

// SoftRuleFinding AI 辅助软规则（除外条款/合理性）检查结论
type SoftRuleFinding struct {
	Rule      string          `json:"rule"`
	Verdict   SoftRuleVerdict `json:"verdict"`
	Rationale string          `json:"rationale,omitempty"`
}

// ValidationResult 校验管线的合成结论。硬规则失败才能判 invalid，
// 软规则失败最多降级为 needs_review
type ValidationResult struct {
	ID               uint              `json:"-" gorm:"primaryKey"`
	ClaimID          string            `json:"-" gorm:"type:varchar(32);index;not null"`
	HardRulesPassed  bool              `json:"hard_rules_passed"`
	HardRuleFailures []string          `json:"hard_rule_failures,omitempty" gorm:"serializer:json"`
	SoftRuleFindings []SoftRuleFinding `json:"soft_rule_findings,omitempty" gorm:"serializer:json"`
	Validity         Validity          `json:"validity" gorm:"type:varchar(15);not null"`
	CreatedAt        time.Time         `json:"-"`
}

// TableName 指定表名
func (ValidationResult) TableName() string { return "validation_results" }

// AnySoftRuleFailed 判断是否存在软规则失败
func (v *ValidationResult) AnySoftRuleFailed() bool {
	for _, f := range v.SoftRuleFindings {
		if f.Verdict == SoftRuleVerdictFail {
			return true
		}
	}
	return false
}

package domain

import "fmt"

// HardRuleResult 硬规则评估结果，收集全部失败原因
type HardRuleResult struct {
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// EvaluateHardRules 对 (Claim, Policy) 评估确定性硬规则。
// 规则相互独立，全部检查，失败原因全部收集，顺序不影响结果。
func EvaluateHardRules(claim *Claim, policy *Policy) HardRuleResult {
	var failures []string

	if policy.Status != PolicyStatusActive {
		failures = append(failures, fmt.Sprintf("policy %s is %s, not active at incident time", policy.PolicyID, policy.Status))
	}

	if claim.Incident.ClaimedAmount.GreaterThan(policy.CoverageLimit) {
		failures = append(failures, fmt.Sprintf("claimed amount %s exceeds coverage limit %s",
			claim.Incident.ClaimedAmount.StringFixed(2), policy.CoverageLimit.StringFixed(2)))
	}

	// 保障窗口字段缺失时跳过该规则，而非判失败
	if policy.CoverageStart != nil && policy.CoverageEnd != nil {
		occurred := claim.Incident.OccurredAt
		if occurred.Before(*policy.CoverageStart) || occurred.After(*policy.CoverageEnd) {
			failures = append(failures, "incident occurred outside policy coverage window")
		}
	}

	return HardRuleResult{Passed: len(failures) == 0, Failures: failures}
}

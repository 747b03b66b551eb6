package application

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/logger"
)

// Validator 校验管线：硬规则引擎、欺诈评分与 AI 软规则检查的合成。
// 三项检查相互独立并发执行，屏障等待全部完成后才合成结论。
type Validator struct {
	analyzer domain.Analyzer
	scoring  domain.ScoringPolicy
}

// NewValidator 创建校验管线
func NewValidator(analyzer domain.Analyzer, scoring domain.ScoringPolicy) *Validator {
	return &Validator{analyzer: analyzer, scoring: scoring}
}

// Validate 对同一理赔并发运行硬规则与 AI 评分路径，合成单一 ValidationResult。
// AI 服务不可用不是校验失败：评分回退到纯结构分，置信度降级。
func (v *Validator) Validate(ctx context.Context, claim *domain.Claim, policy *domain.Policy) (*domain.ValidationResult, *domain.FraudScore, error) {
	var (
		hard     domain.HardRuleResult
		analysis *domain.Analysis
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hard = domain.EvaluateHardRules(claim, policy)
		return nil
	})

	g.Go(func() error {
		a, err := v.analyzer.Analyze(gctx, domain.AnalysisRequest{
			Role:   domain.RoleRiskScorer,
			Claim:  claim,
			Policy: policy,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || gctx.Err() != nil {
				return err
			}
			// 暂时性失败降级处理，评分走结构分回退路径
			logger.Warn(gctx, "AI analysis unavailable during validation, falling back to structural score",
				"claim_id", claim.ClaimID, "error", err)
			return nil
		}
		analysis = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		aiSignal *int
		redFlags []string
		findings []domain.SoftRuleFinding
	)
	if analysis != nil {
		signal := analysis.Signal
		aiSignal = &signal
		redFlags = analysis.RedFlags
		findings = analysis.SoftRuleFindings
	}

	score := v.scoring.ComputeFraudScore(claim.ClaimID, claim.Incident, aiSignal, redFlags)

	result := &domain.ValidationResult{
		ClaimID:          claim.ClaimID,
		HardRulesPassed:  hard.Passed,
		HardRuleFailures: hard.Failures,
		SoftRuleFindings: findings,
		Validity:         v.composeValidity(hard, &score, findings),
	}

	return result, &score, nil
}

// composeValidity 合成校验结论。只有硬规则能判 invalid；
// 非低风险或软规则失败降级为 needs_review。
func (v *Validator) composeValidity(hard domain.HardRuleResult, score *domain.FraudScore, findings []domain.SoftRuleFinding) domain.Validity {
	if !hard.Passed {
		return domain.ValidityInvalid
	}
	if score.RiskLevel != domain.RiskLevelLow {
		return domain.ValidityNeedsReview
	}
	for _, f := range findings {
		if f.Verdict == domain.SoftRuleVerdictFail {
			return domain.ValidityNeedsReview
		}
	}
	return domain.ValidityValid
}

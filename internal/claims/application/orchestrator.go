package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/logger"
	"github.com/wyfcoding/claimscortex/pkg/metrics"
)

// WorkflowSettings 阶段编排参数
type WorkflowSettings struct {
	// 单阶段协作方调用超时（每次尝试）
	StageTimeout time.Duration
	// 单阶段最大尝试次数（含首次）
	MaxAttempts int
	// 指数退避初始/最大间隔
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// PipelineResult 一次理赔遍历各阶段的产出
type PipelineResult struct {
	Policy        *domain.Policy
	Validation    *domain.ValidationResult
	Score         *domain.FraudScore
	Investigation *domain.Analysis
	Adjudication  *domain.Analysis
	Consensus     *domain.ConsensusRecord
}

// Orchestrator 分阶段理赔工作流编排器。
// 阶段严格顺序推进，每阶段对协作方调用施加超时与有界指数退避重试；
// 重试耗尽后理赔转入 FAILED，绝不静默丢弃。
type Orchestrator struct {
	repo        domain.ClaimRepository
	policyStore domain.PolicyStore
	analyzer    domain.Analyzer
	validator   *Validator
	metrics     *metrics.Metrics
	settings    WorkflowSettings
}

// NewOrchestrator 创建编排器。metrics 可为 nil（测试场景）
func NewOrchestrator(repo domain.ClaimRepository, policyStore domain.PolicyStore, analyzer domain.Analyzer, validator *Validator, m *metrics.Metrics, settings WorkflowSettings) *Orchestrator {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 1
	}
	return &Orchestrator{
		repo:        repo,
		policyStore: policyStore,
		analyzer:    analyzer,
		validator:   validator,
		metrics:     m,
		settings:    settings,
	}
}

// Run 驱动理赔走完 Ingestion → 校验 → Investigation → Adjudication → Consensus。
// 硬规则失败的理赔在校验后短路返回（不再消耗 AI 调用）。
// 取消时立即停止发起新的阶段调用，不产生部分裁决。
func (o *Orchestrator) Run(ctx context.Context, claim *domain.Claim) (*PipelineResult, error) {
	res := &PipelineResult{}

	// Ingestion：从保单存储取保单与文档上下文
	if err := o.advance(ctx, claim, domain.ClaimStatusIngesting); err != nil {
		return res, err
	}
	if err := o.runStage(ctx, claim, domain.StageIngestion, func(cctx context.Context) error {
		policy, err := o.policyStore.GetPolicy(cctx, claim.PolicyID)
		if err != nil {
			return err
		}
		res.Policy = policy
		return nil
	}); err != nil {
		return res, o.failClaim(ctx, claim, domain.StageIngestion, err)
	}

	// 校验管线：硬规则 + 评分 + 软规则，屏障合成
	validation, score, err := o.validator.Validate(ctx, claim, res.Policy)
	if err != nil {
		return res, err
	}
	res.Validation, res.Score = validation, score

	if err := o.repo.SaveValidationResult(ctx, validation); err != nil {
		return res, err
	}
	if err := o.repo.SaveFraudScore(ctx, score); err != nil {
		return res, err
	}
	o.audit(ctx, claim.ClaimID, "claim_validated",
		fmt.Sprintf("validity=%s score=%d risk=%s", validation.Validity, score.Score, score.RiskLevel))
	if o.metrics != nil && score.RiskLevel == domain.RiskLevelHigh {
		o.metrics.FraudFlaggedTotal.Inc()
	}

	// 硬规则失败短路：直接进入裁决路由
	if validation.Validity == domain.ValidityInvalid {
		return res, nil
	}

	// Investigation：AI 深度调查视角
	if err := o.advance(ctx, claim, domain.ClaimStatusInvestigating); err != nil {
		return res, err
	}
	if err := o.runStage(ctx, claim, domain.StageInvestigation, func(cctx context.Context) error {
		analysis, err := o.analyzer.Analyze(cctx, domain.AnalysisRequest{
			Role:   domain.RoleInvestigator,
			Claim:  claim,
			Policy: res.Policy,
			Score:  score,
		})
		if err != nil {
			return err
		}
		res.Investigation = analysis
		return nil
	}); err != nil {
		return res, o.failClaim(ctx, claim, domain.StageInvestigation, err)
	}

	// Adjudication：AI 裁决视角，消费调查结论
	if err := o.advance(ctx, claim, domain.ClaimStatusAdjudicating); err != nil {
		return res, err
	}
	if err := o.runStage(ctx, claim, domain.StageAdjudication, func(cctx context.Context) error {
		analysis, err := o.analyzer.Analyze(cctx, domain.AnalysisRequest{
			Role:     domain.RoleAdjudicator,
			Claim:    claim,
			Policy:   res.Policy,
			Score:    score,
			Findings: res.Investigation.SoftRuleFindings,
		})
		if err != nil {
			return err
		}
		res.Adjudication = analysis
		return nil
	}); err != nil {
		return res, o.failClaim(ctx, claim, domain.StageAdjudication, err)
	}

	// Consensus：聚合各 agent 角色投票，纯本地计算
	if err := o.advance(ctx, claim, domain.ClaimStatusConsensus); err != nil {
		return res, err
	}
	consensus := domain.ComputeConsensus(map[domain.Role]domain.Recommendation{
		domain.RoleInvestigator: res.Investigation.Recommendation,
		domain.RoleAdjudicator:  res.Adjudication.Recommendation,
		domain.RoleRiskScorer:   domain.RecommendationForRisk(score.RiskLevel),
	})
	res.Consensus = &consensus
	o.audit(ctx, claim.ClaimID, "consensus_reached",
		fmt.Sprintf("recommendation=%s agreement=%.2f", consensus.FinalRecommendation, consensus.AgreementRatio))

	return res, nil
}

// runStage 执行单个阶段：任务记录、每次尝试的超时、有界指数退避重试
func (o *Orchestrator) runStage(ctx context.Context, claim *domain.Claim, stage domain.Stage, fn func(context.Context) error) error {
	task := &domain.AgentTask{ClaimID: claim.ClaimID, Stage: stage, Status: domain.TaskStatusRunning}
	if err := o.repo.SaveAgentTask(ctx, task); err != nil {
		logger.Warn(ctx, "Failed to persist agent task", "claim_id", claim.ClaimID, "stage", stage, "error", err)
	}
	o.audit(ctx, claim.ClaimID, "stage_started", string(stage))

	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		task.Attempts++

		cctx, cancel := context.WithTimeout(ctx, o.settings.StageTimeout)
		defer cancel()

		err := fn(cctx)
		if err == nil {
			return nil
		}
		task.LastError = err.Error()

		if isPermanent(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if o.metrics != nil {
			o.metrics.StageRetriesTotal.WithLabelValues(string(stage)).Inc()
		}
		logger.Warn(ctx, "Stage attempt failed",
			"claim_id", claim.ClaimID, "stage", stage, "attempt", task.Attempts, "error", err)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.settings.BackoffInitial
	bo.MaxInterval = o.settings.BackoffMax
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(o.settings.MaxAttempts-1)))

	// 取消后的收尾写入不能再依赖已取消的 context
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		task.Status = domain.TaskStatusFailed
		if saveErr := o.repo.SaveAgentTask(persistCtx, task); saveErr != nil {
			logger.Warn(ctx, "Failed to persist failed agent task", "claim_id", claim.ClaimID, "stage", stage, "error", saveErr)
		}
		o.audit(persistCtx, claim.ClaimID, "stage_failed",
			fmt.Sprintf("stage=%s attempts=%d error=%v", stage, task.Attempts, err))
		return err
	}

	task.Status = domain.TaskStatusSucceeded
	if saveErr := o.repo.SaveAgentTask(ctx, task); saveErr != nil {
		logger.Warn(ctx, "Failed to persist agent task", "claim_id", claim.ClaimID, "stage", stage, "error", saveErr)
	}
	o.audit(ctx, claim.ClaimID, "stage_completed", string(stage))
	return nil
}

// failClaim 将阶段失败归类：调用方取消原样上抛；保单缺失为调用方错误；
// 其余为重试耗尽的协作方失败，理赔转 FAILED 并以 StageFailureError 上抛
func (o *Orchestrator) failClaim(ctx context.Context, claim *domain.Claim, stage domain.Stage, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	persistCtx := context.WithoutCancel(ctx)
	claim.Status = domain.ClaimStatusFailed
	if updateErr := o.repo.UpdateClaimStatus(persistCtx, claim.ClaimID, domain.ClaimStatusFailed); updateErr != nil {
		logger.Error(ctx, "Failed to mark claim as failed", "claim_id", claim.ClaimID, "error", updateErr)
	}

	if errors.Is(err, domain.ErrPolicyNotFound) {
		o.audit(persistCtx, claim.ClaimID, "policy_not_found", claim.PolicyID)
		return err
	}

	return &domain.StageFailureError{Stage: stage, Err: err}
}

// advance 推进状态机并持久化
func (o *Orchestrator) advance(ctx context.Context, claim *domain.Claim, to domain.ClaimStatus) error {
	if err := claim.Transition(to); err != nil {
		return fmt.Errorf("%w: cannot transition claim %s to %s", err, claim.ClaimID, to)
	}
	if err := o.repo.UpdateClaimStatus(ctx, claim.ClaimID, to); err != nil {
		return err
	}
	o.audit(ctx, claim.ClaimID, "status_changed", string(to))
	return nil
}

func (o *Orchestrator) audit(ctx context.Context, claimID, kind, detail string) {
	if err := o.repo.AppendAuditEvent(ctx, &domain.AuditEvent{ClaimID: claimID, Kind: kind, Detail: detail}); err != nil {
		logger.Warn(ctx, "Failed to append audit event", "claim_id", claimID, "kind", kind, "error", err)
	}
}

// isPermanent 判断错误是否不可重试
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrPolicyNotFound) ||
		errors.Is(err, domain.ErrAlreadyDecided) ||
		errors.Is(err, domain.ErrInconsistentState) ||
		domain.IsMalformedInput(err)
}

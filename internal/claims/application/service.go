package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/idgen"
	"github.com/wyfcoding/claimscortex/pkg/logger"
	"github.com/wyfcoding/claimscortex/pkg/metrics"
)

// ClaimService 理赔应用服务：规范化 → 编排 → 裁决路由 → 持久化与事件发布
type ClaimService struct {
	repo         domain.ClaimRepository
	publisher    domain.EventPublisher
	normalizer   *Normalizer
	orchestrator *Orchestrator
	router       *Router
	metrics      *metrics.Metrics
}

// NewClaimService 组装理赔应用服务。publisher 与 m 可为 nil
func NewClaimService(
	repo domain.ClaimRepository,
	policyStore domain.PolicyStore,
	analyzer domain.Analyzer,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	scoring domain.ScoringPolicy,
	workflow WorkflowSettings,
	ids *idgen.Generator,
) *ClaimService {
	validator := NewValidator(analyzer, scoring)
	return &ClaimService{
		repo:         repo,
		publisher:    publisher,
		normalizer:   NewNormalizer(ids),
		orchestrator: NewOrchestrator(repo, policyStore, analyzer, validator, m, workflow),
		router:       NewRouter(),
		metrics:      m,
	}
}

// AnalyzeClaim 处理一次理赔分析请求，产出可审计的终局裁决。
// 协作方重试耗尽时理赔记录为 escalated 并连同 ErrTransientCollaborator 返回，
// 绝不静默丢弃；已裁决理赔的重复提交返回 ErrAlreadyDecided。
func (s *ClaimService) AnalyzeClaim(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	claim, err := s.prepareClaim(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PipelinesActive.Inc()
		defer s.metrics.PipelinesActive.Dec()
	}

	result, runErr := s.orchestrator.Run(ctx, claim)
	if runErr != nil {
		var stageFail *domain.StageFailureError
		if errors.As(runErr, &stageFail) {
			// 升级而非丢弃：裁决注明失败阶段
			decision := s.router.EscalateForStageFailure(claim.ClaimID, stageFail)
			if err := s.persistDecision(ctx, claim, decision); err != nil {
				return nil, err
			}
			resp := s.buildResponse(claim, result, decision)
			return resp, fmt.Errorf("%w: %s", domain.ErrTransientCollaborator, stageFail.Error())
		}
		return nil, runErr
	}

	decision, err := s.router.Route(claim, result.Policy, result)
	if err != nil {
		logger.Error(ctx, "Decision routing failed", "claim_id", claim.ClaimID, "error", err)
		return nil, err
	}

	if err := s.persistDecision(ctx, claim, decision); err != nil {
		return nil, err
	}

	return s.buildResponse(claim, result, decision), nil
}

// prepareClaim 新请求走规范化建档；携带 claimId 的请求执行重新分析，
// 已裁决的理赔拒绝重复处理
func (s *ClaimService) prepareClaim(ctx context.Context, req AnalyzeRequest) (*domain.Claim, error) {
	if req.ClaimID != "" {
		claim, err := s.repo.GetClaim(ctx, req.ClaimID)
		if err != nil {
			return nil, err
		}
		decision, err := s.repo.GetDecision(ctx, req.ClaimID)
		if err != nil {
			return nil, err
		}
		if decision != nil {
			return nil, fmt.Errorf("%w: claim %s", domain.ErrAlreadyDecided, req.ClaimID)
		}

		// 从上次失败处恢复：重置到 RECEIVED 重新遍历，审计保留两次运行
		claim.Status = domain.ClaimStatusReceived
		if err := s.repo.UpdateClaimStatus(ctx, claim.ClaimID, claim.Status); err != nil {
			return nil, err
		}
		s.audit(ctx, claim.ClaimID, "claim_reanalysis", "pipeline restarted")
		return claim, nil
	}

	claim, err := s.normalizer.Normalize(req.IncidentData, req.PolicyID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}
	s.audit(ctx, claim.ClaimID, "claim_received", "incident report accepted")
	if s.metrics != nil {
		s.metrics.ClaimsReceivedTotal.Inc()
	}
	return claim, nil
}

// persistDecision 恰好一次地写入终局裁决并收尾：
// 状态推进、阶段任务清理、审计、事件发布、指标上报
func (s *ClaimService) persistDecision(ctx context.Context, claim *domain.Claim, decision *domain.Decision) error {
	// 已取消的管线绝不持久化部分裁决
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = time.Now()
	}
	if err := s.repo.SaveDecision(ctx, decision); err != nil {
		return err
	}

	// FAILED 理赔保持 FAILED，对外以 escalated 裁决暴露
	if claim.Status != domain.ClaimStatusFailed {
		if err := claim.Transition(domain.ClaimStatusDecided); err != nil {
			return err
		}
		if err := s.repo.UpdateClaimStatus(ctx, claim.ClaimID, domain.ClaimStatusDecided); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteAgentTasks(ctx, claim.ClaimID); err != nil {
		logger.Warn(ctx, "Failed to clear agent tasks", "claim_id", claim.ClaimID, "error", err)
	}
	s.audit(ctx, claim.ClaimID, "decision_made",
		fmt.Sprintf("status=%s reasoning=%s", decision.Status, decision.Reasoning))

	if s.publisher != nil {
		event := domain.DecisionEvent{
			ClaimID:   decision.ClaimID,
			Status:    decision.Status,
			Reasoning: decision.Reasoning,
			CreatedAt: decision.CreatedAt,
		}
		if err := s.publisher.PublishDecisionMade(ctx, event); err != nil {
			logger.Error(ctx, "Failed to publish decision event", "claim_id", claim.ClaimID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ClaimsDecidedTotal.WithLabelValues(string(decision.Status)).Inc()
		if !claim.CreatedAt.IsZero() {
			s.metrics.DecisionLatency.Observe(time.Since(claim.CreatedAt).Seconds())
		}
	}
	return nil
}

func (s *ClaimService) buildResponse(claim *domain.Claim, result *PipelineResult, decision *domain.Decision) *AnalyzeResponse {
	resp := &AnalyzeResponse{
		ClaimID:   claim.ClaimID,
		Status:    string(decision.Status),
		CreatedAt: decision.CreatedAt.UTC().Format(time.RFC3339),
	}

	var score *domain.FraudScore
	if result != nil {
		score = result.Score
	}
	resp.FraudScore = newFraudScoreDTO(score)

	analysis := AIAnalysisDTO{
		Validity:        string(domain.ValidityNeedsReview),
		Recommendation:  recommendationFor(decision.Status),
		EstimatedPayout: decision.EstimatedPayout,
		RedFlags:        []string{},
		Reasoning:       decision.Reasoning,
	}
	if result != nil && result.Validation != nil {
		analysis.Validity = string(result.Validation.Validity)
	}
	if result != nil && result.Investigation != nil && len(result.Investigation.RedFlags) > 0 {
		analysis.RedFlags = result.Investigation.RedFlags
	} else if score != nil && len(score.Indicators) > 0 {
		analysis.RedFlags = score.Indicators
	}
	resp.AIAnalysis = analysis
	return resp
}

// GetClaim 按 claimId 读取理赔详情（当前评分、校验、裁决与审计轨迹）
func (s *ClaimService) GetClaim(ctx context.Context, claimID string) (*ClaimDetail, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	detail := &ClaimDetail{Claim: claim}
	if detail.FraudScore, err = s.repo.LatestFraudScore(ctx, claimID); err != nil {
		return nil, err
	}
	if detail.Validation, err = s.repo.LatestValidationResult(ctx, claimID); err != nil {
		return nil, err
	}
	if detail.Decision, err = s.repo.GetDecision(ctx, claimID); err != nil {
		return nil, err
	}
	if detail.AuditTrail, err = s.repo.ListAuditEvents(ctx, claimID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Stats 仪表盘只读投影
func (s *ClaimService) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.AvgProcessingStr = stats.AvgProcessing.Round(10 * time.Millisecond).String()
	return stats, nil
}

func (s *ClaimService) audit(ctx context.Context, claimID, kind, detail string) {
	if err := s.repo.AppendAuditEvent(ctx, &domain.AuditEvent{ClaimID: claimID, Kind: kind, Detail: detail}); err != nil {
		logger.Warn(ctx, "Failed to append audit event", "claim_id", claimID, "kind", kind, "error", err)
	}
}

func recommendationFor(status domain.DecisionStatus) string {
	switch status {
	case domain.DecisionApproved:
		return "auto_approve"
	case domain.DecisionDenied:
		return "reject"
	default:
		return "manual_review"
	}
}

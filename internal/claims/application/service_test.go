package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/idgen"
)

func newTestService(repo *memRepo, store domain.PolicyStore, analyzer domain.Analyzer, publisher domain.EventPublisher) *ClaimService {
	return NewClaimService(repo, store, analyzer, publisher, nil,
		domain.DefaultScoringPolicy(), testSettings(), idgen.New(1))
}

func TestAnalyzeClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("clean claim is approved end to end", func(t *testing.T) {
		repo := newMemRepo()
		publisher := &capturingPublisher{}
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer(), publisher)

		resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
		})
		require.NoError(t, err)

		assert.Equal(t, string(domain.DecisionApproved), resp.Status)
		assert.Equal(t, "Low", resp.FraudScore.RiskLevel)
		assert.Equal(t, "valid", resp.AIAnalysis.Validity)
		assert.Equal(t, "auto_approve", resp.AIAnalysis.Recommendation)

		claim, err := repo.GetClaim(ctx, resp.ClaimID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClaimStatusDecided, claim.Status)

		decision, err := repo.GetDecision(ctx, resp.ClaimID)
		require.NoError(t, err)
		require.NotNil(t, decision)
		assert.Equal(t, domain.DecisionApproved, decision.Status)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, resp.ClaimID, publisher.events[0].ClaimID)

		// 终局后阶段任务清空
		assert.Empty(t, repo.tasks[resp.ClaimID])
		assert.Contains(t, repo.auditKinds(resp.ClaimID), "claim_received")
		assert.Contains(t, repo.auditKinds(resp.ClaimID), "decision_made")
	})

	t.Run("lapsed policy claim is denied", func(t *testing.T) {
		repo := newMemRepo()
		policy := testPolicy()
		policy.Status = domain.PolicyStatusLapsed
		svc := newTestService(repo, &stubPolicyStore{policy: policy}, newStubAnalyzer(), nil)

		resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
		})
		require.NoError(t, err)
		assert.Equal(t, string(domain.DecisionDenied), resp.Status)
		assert.Equal(t, "invalid", resp.AIAnalysis.Validity)
		assert.Equal(t, "reject", resp.AIAnalysis.Recommendation)
	})

	t.Run("collaborator outage escalates and reports 502 semantics", func(t *testing.T) {
		repo := newMemRepo()
		analyzer := newStubAnalyzer()
		analyzer.errs[domain.RoleRiskScorer] = fmt.Errorf("%w: ai down", domain.ErrTransientCollaborator)
		analyzer.errs[domain.RoleInvestigator] = fmt.Errorf("%w: ai down", domain.ErrTransientCollaborator)
		analyzer.errs[domain.RoleAdjudicator] = fmt.Errorf("%w: ai down", domain.ErrTransientCollaborator)
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, analyzer, nil)

		resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
		})
		require.ErrorIs(t, err, domain.ErrTransientCollaborator)
		require.NotNil(t, resp)
		assert.Equal(t, string(domain.DecisionEscalated), resp.Status)
		assert.Contains(t, resp.AIAnalysis.Reasoning, "Investigation stage unavailable")

		// 升级裁决已持久化，理赔保持 FAILED
		decision, getErr := repo.GetDecision(ctx, resp.ClaimID)
		require.NoError(t, getErr)
		require.NotNil(t, decision)
		assert.Equal(t, domain.DecisionEscalated, decision.Status)

		claim, getErr := repo.GetClaim(ctx, resp.ClaimID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.ClaimStatusFailed, claim.Status)
	})

	t.Run("malformed input persists nothing", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer(), nil)

		data := validIncidentData()
		data.Location = ""
		_, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{IncidentData: data, PolicyID: "POL-1"})
		require.Error(t, err)
		assert.True(t, domain.IsMalformedInput(err))
		assert.Empty(t, repo.claims)
	})

	t.Run("reanalysis of decided claim is rejected", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer(), nil)

		resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
		})
		require.NoError(t, err)

		_, err = svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
			ClaimID:      resp.ClaimID,
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	})

	t.Run("failed claim can be reanalyzed to a decision", func(t *testing.T) {
		repo := newMemRepo()
		analyzer := newStubAnalyzer()
		analyzer.errs[domain.RoleInvestigator] = fmt.Errorf("%w: ai down", domain.ErrTransientCollaborator)
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, analyzer, nil)

		// 首次运行：Investigation 不可用 → FAILED + escalated 裁决
		resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
		})
		require.ErrorIs(t, err, domain.ErrTransientCollaborator)
		require.NotNil(t, resp)

		// 已有终局裁决，重分析被拒
		_, err = svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
			ClaimID:      resp.ClaimID,
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	})

	t.Run("unknown claim id on reanalysis", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer(), nil)

		_, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
			IncidentData: validIncidentData(),
			PolicyID:     "POL-1",
			ClaimID:      "CLM-missing",
		})
		assert.ErrorIs(t, err, domain.ErrClaimNotFound)
	})
}

func TestGetClaimDetail(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer(), nil)

	resp, err := svc.AnalyzeClaim(ctx, AnalyzeRequest{
		IncidentData: validIncidentData(),
		PolicyID:     "POL-1",
	})
	require.NoError(t, err)

	detail, err := svc.GetClaim(ctx, resp.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, resp.ClaimID, detail.Claim.ClaimID)
	require.NotNil(t, detail.FraudScore)
	require.NotNil(t, detail.Validation)
	require.NotNil(t, detail.Decision)
	assert.NotEmpty(t, detail.AuditTrail)

	_, err = svc.GetClaim(ctx, "CLM-missing")
	assert.ErrorIs(t, err, domain.ErrClaimNotFound)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
)

func newTestOrchestrator(repo *memRepo, store domain.PolicyStore, analyzer domain.Analyzer) *Orchestrator {
	validator := NewValidator(analyzer, domain.DefaultScoringPolicy())
	return NewOrchestrator(repo, store, analyzer, validator, nil, testSettings())
}

func seedClaim(t *testing.T, repo *memRepo) *domain.Claim {
	t.Helper()
	claim := testClaim(domain.ClaimStatusReceived)
	require.NoError(t, repo.CreateClaim(context.Background(), claim))
	return claim
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("full traversal reaches consensus", func(t *testing.T) {
		repo := newMemRepo()
		analyzer := newStubAnalyzer()
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: testPolicy()}, analyzer)
		claim := seedClaim(t, repo)

		result, err := o.Run(ctx, claim)
		require.NoError(t, err)

		assert.Equal(t, domain.ClaimStatusConsensus, claim.Status)
		assert.NotNil(t, result.Policy)
		assert.NotNil(t, result.Validation)
		assert.NotNil(t, result.Score)
		assert.NotNil(t, result.Investigation)
		assert.NotNil(t, result.Adjudication)
		require.NotNil(t, result.Consensus)
		assert.Len(t, result.Consensus.AgentVotes, 3)
		assert.Contains(t, repo.auditKinds(claim.ClaimID), "consensus_reached")
	})

	t.Run("invalid claim short-circuits before investigation", func(t *testing.T) {
		repo := newMemRepo()
		analyzer := newStubAnalyzer()
		policy := testPolicy()
		policy.Status = domain.PolicyStatusLapsed
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: policy}, analyzer)
		claim := seedClaim(t, repo)

		result, err := o.Run(ctx, claim)
		require.NoError(t, err)

		assert.Equal(t, domain.ValidityInvalid, result.Validation.Validity)
		assert.Equal(t, domain.ClaimStatusIngesting, claim.Status)
		assert.Nil(t, result.Investigation)
		assert.Zero(t, analyzer.callCount(domain.RoleInvestigator))
		assert.Zero(t, analyzer.callCount(domain.RoleAdjudicator))
	})

	t.Run("retry exhaustion fails the claim", func(t *testing.T) {
		repo := newMemRepo()
		analyzer := newStubAnalyzer()
		analyzer.errs[domain.RoleInvestigator] = fmt.Errorf("%w: ai service returned 503", domain.ErrTransientCollaborator)
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: testPolicy()}, analyzer)
		claim := seedClaim(t, repo)

		_, err := o.Run(ctx, claim)
		require.Error(t, err)

		var stageFail *domain.StageFailureError
		require.ErrorAs(t, err, &stageFail)
		assert.Equal(t, domain.StageInvestigation, stageFail.Stage)
		assert.Equal(t, domain.ClaimStatusFailed, claim.Status)
		// MaxAttempts=2：首次 + 一次重试
		assert.Equal(t, 2, analyzer.callCount(domain.RoleInvestigator))
		assert.Contains(t, repo.auditKinds(claim.ClaimID), "stage_failed")
	})

	t.Run("policy not found surfaces without stage failure wrapping", func(t *testing.T) {
		repo := newMemRepo()
		o := newTestOrchestrator(repo, &stubPolicyStore{err: domain.ErrPolicyNotFound}, newStubAnalyzer())
		claim := seedClaim(t, repo)

		_, err := o.Run(ctx, claim)
		require.ErrorIs(t, err, domain.ErrPolicyNotFound)
		var stageFail *domain.StageFailureError
		assert.False(t, errors.As(err, &stageFail))
		assert.Equal(t, domain.ClaimStatusFailed, claim.Status)
	})

	t.Run("validation persists score and result", func(t *testing.T) {
		repo := newMemRepo()
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer())
		claim := seedClaim(t, repo)

		_, err := o.Run(ctx, claim)
		require.NoError(t, err)

		score, err := repo.LatestFraudScore(ctx, claim.ClaimID)
		require.NoError(t, err)
		require.NotNil(t, score)
		validation, err := repo.LatestValidationResult(ctx, claim.ClaimID)
		require.NoError(t, err)
		require.NotNil(t, validation)
	})

	t.Run("cancellation aborts without stage failure", func(t *testing.T) {
		repo := newMemRepo()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer())
		claim := seedClaim(t, repo)

		_, err := o.Run(cctx, claim)
		require.Error(t, err)
		var stageFail *domain.StageFailureError
		assert.False(t, errors.As(err, &stageFail))
	})

	t.Run("over-limit amount is denied path not failure", func(t *testing.T) {
		repo := newMemRepo()
		o := newTestOrchestrator(repo, &stubPolicyStore{policy: testPolicy()}, newStubAnalyzer())
		claim := testClaim(domain.ClaimStatusReceived)
		claim.Incident.ClaimedAmount = decimal.NewFromInt(999999)
		require.NoError(t, repo.CreateClaim(ctx, claim))

		result, err := o.Run(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, domain.ValidityInvalid, result.Validation.Validity)
	})
}

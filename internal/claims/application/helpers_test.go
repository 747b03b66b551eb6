package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
)

// memRepo 进程内仓储，测试用
type memRepo struct {
	mu          sync.Mutex
	claims      map[string]*domain.Claim
	scores      map[string][]*domain.FraudScore
	validations map[string][]*domain.ValidationResult
	decisions   map[string]*domain.Decision
	tasks       map[string][]*domain.AgentTask
	audits      map[string][]*domain.AuditEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		claims:      make(map[string]*domain.Claim),
		scores:      make(map[string][]*domain.FraudScore),
		validations: make(map[string][]*domain.ValidationResult),
		decisions:   make(map[string]*domain.Decision),
		tasks:       make(map[string][]*domain.AgentTask),
		audits:      make(map[string][]*domain.AuditEvent),
	}
}

func (r *memRepo) CreateClaim(_ context.Context, claim *domain.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claims[claim.ClaimID]; ok {
		return fmt.Errorf("duplicate claim %s", claim.ClaimID)
	}
	claim.CreatedAt = time.Now()
	copied := *claim
	r.claims[claim.ClaimID] = &copied
	return nil
}

func (r *memRepo) GetClaim(_ context.Context, claimID string) (*domain.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim, ok := r.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
	}
	copied := *claim
	return &copied, nil
}

func (r *memRepo) UpdateClaimStatus(_ context.Context, claimID string, status domain.ClaimStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim, ok := r.claims[claimID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
	}
	claim.Status = status
	return nil
}

func (r *memRepo) SaveFraudScore(_ context.Context, score *domain.FraudScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *score
	r.scores[score.ClaimID] = append(r.scores[score.ClaimID], &copied)
	return nil
}

func (r *memRepo) LatestFraudScore(_ context.Context, claimID string) (*domain.FraudScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.scores[claimID]
	if len(history) == 0 {
		return nil, nil
	}
	copied := *history[len(history)-1]
	return &copied, nil
}

func (r *memRepo) SaveValidationResult(_ context.Context, result *domain.ValidationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *result
	r.validations[result.ClaimID] = append(r.validations[result.ClaimID], &copied)
	return nil
}

func (r *memRepo) LatestValidationResult(_ context.Context, claimID string) (*domain.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.validations[claimID]
	if len(history) == 0 {
		return nil, nil
	}
	copied := *history[len(history)-1]
	return &copied, nil
}

func (r *memRepo) SaveDecision(_ context.Context, decision *domain.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.decisions[decision.ClaimID]; ok {
		return fmt.Errorf("%w: claim %s", domain.ErrAlreadyDecided, decision.ClaimID)
	}
	copied := *decision
	r.decisions[decision.ClaimID] = &copied
	return nil
}

func (r *memRepo) GetDecision(_ context.Context, claimID string) (*domain.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	decision, ok := r.decisions[claimID]
	if !ok {
		return nil, nil
	}
	copied := *decision
	return &copied, nil
}

func (r *memRepo) SaveAgentTask(_ context.Context, task *domain.AgentTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *task
	r.tasks[task.ClaimID] = append(r.tasks[task.ClaimID], &copied)
	return nil
}

func (r *memRepo) DeleteAgentTasks(_ context.Context, claimID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, claimID)
	return nil
}

func (r *memRepo) AppendAuditEvent(_ context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	copied.CreatedAt = time.Now()
	r.audits[event.ClaimID] = append(r.audits[event.ClaimID], &copied)
	return nil
}

func (r *memRepo) ListAuditEvents(_ context.Context, claimID string) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuditEvent(nil), r.audits[claimID]...), nil
}

func (r *memRepo) Stats(_ context.Context) (*domain.DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.DashboardStats{RiskDistribution: make(map[string]int64)}
	for _, claim := range r.claims {
		if !claim.Status.IsTerminal() {
			stats.ActiveClaims++
		}
	}
	var approved int64
	for _, d := range r.decisions {
		if d.Status == domain.DecisionApproved {
			approved++
		}
	}
	if len(r.decisions) > 0 {
		stats.ApprovalRate = float64(approved) / float64(len(r.decisions))
	}
	stats.TotalPayout = "0.00"
	return stats, nil
}

func (r *memRepo) auditKinds(claimID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.audits[claimID]))
	for _, e := range r.audits[claimID] {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// stubPolicyStore 固定保单或固定错误
type stubPolicyStore struct {
	policy *domain.Policy
	err    error
}

func (s *stubPolicyStore) GetPolicy(_ context.Context, policyID string) (*domain.Policy, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.policy
	copied.PolicyID = policyID
	return &copied, nil
}

// stubAnalyzer 按角色返回预设分析结论，记录调用次序
type stubAnalyzer struct {
	mu        sync.Mutex
	responses map[domain.Role]*domain.Analysis
	errs      map[domain.Role]error
	calls     []domain.Role
}

func newStubAnalyzer() *stubAnalyzer {
	return &stubAnalyzer{
		responses: make(map[domain.Role]*domain.Analysis),
		errs:      make(map[domain.Role]error),
	}
}

func (s *stubAnalyzer) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.Role)
	if err := s.errs[req.Role]; err != nil {
		return nil, err
	}
	if a, ok := s.responses[req.Role]; ok {
		copied := *a
		return &copied, nil
	}
	return &domain.Analysis{Signal: 5, Recommendation: domain.RecommendationApprove}, nil
}

func (s *stubAnalyzer) callCount(role domain.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.calls {
		if r == role {
			n++
		}
	}
	return n
}

// capturingPublisher 收集发布的裁决事件
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.DecisionEvent
}

func (p *capturingPublisher) PublishDecisionMade(_ context.Context, event domain.DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testPolicy() *domain.Policy {
	return &domain.Policy{
		PolicyID:      "POL-1",
		Status:        domain.PolicyStatusActive,
		CoverageLimit: decimal.NewFromInt(50000),
	}
}

func testClaim(status domain.ClaimStatus) *domain.Claim {
	return &domain.Claim{
		ClaimID:  "CLM-1",
		PolicyID: "POL-1",
		Incident: domain.IncidentReport{
			Location:      "Main St",
			OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Description:   "minor collision",
			ClaimedAmount: decimal.NewFromInt(1000),
		},
		Status: status,
	}
}

func testSettings() WorkflowSettings {
	return WorkflowSettings{
		StageTimeout:   200 * time.Millisecond,
		MaxAttempts:    2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

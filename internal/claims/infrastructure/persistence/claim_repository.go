package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/db"
)

// ClaimRepository 基于 GORM 的理赔仓储实现
type ClaimRepository struct {
	db *db.DB
}

// NewClaimRepository 创建理赔仓储
func NewClaimRepository(database *db.DB) *ClaimRepository {
	return &ClaimRepository{db: database}
}

// CreateClaim 创建理赔记录
func (r *ClaimRepository) CreateClaim(ctx context.Context, claim *domain.Claim) error {
	if err := r.db.WithContext(ctx).Create(claim).Error; err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetClaim 按 claimId 查询理赔，不存在时返回 ErrClaimNotFound
func (r *ClaimRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	var claim domain.Claim
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &claim, nil
}

// UpdateClaimStatus 更新理赔状态，last-writer-wins
func (r *ClaimRepository) UpdateClaimStatus(ctx context.Context, claimID string, status domain.ClaimStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Claim{}).
		Where("claim_id = ?", claimID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update claim status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
	}
	return nil
}

// SaveFraudScore 追加评分记录，历史保留
func (r *ClaimRepository) SaveFraudScore(ctx context.Context, score *domain.FraudScore) error {
	if err := r.db.WithContext(ctx).Create(score).Error; err != nil {
		return fmt.Errorf("failed to save fraud score: %w", err)
	}
	return nil
}

// LatestFraudScore 查询最新一条评分，不存在时返回 nil
func (r *ClaimRepository) LatestFraudScore(ctx context.Context, claimID string) (*domain.FraudScore, error) {
	var score domain.FraudScore
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("id DESC").First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fraud score: %w", err)
	}
	return &score, nil
}

// SaveValidationResult 追加校验结论
func (r *ClaimRepository) SaveValidationResult(ctx context.Context, result *domain.ValidationResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to save validation result: %w", err)
	}
	return nil
}

// LatestValidationResult 查询最新一条校验结论，不存在时返回 nil
func (r *ClaimRepository) LatestValidationResult(ctx context.Context, claimID string) (*domain.ValidationResult, error) {
	var result domain.ValidationResult
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("id DESC").First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}
	return &result, nil
}

// SaveDecision 写入终局裁决。claim_id 唯一索引保证恰好一次，
// 重复写入由方言错误翻译为 ErrAlreadyDecided
func (r *ClaimRepository) SaveDecision(ctx context.Context, decision *domain.Decision) error {
	err := r.db.WithContext(ctx).Create(decision).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: claim %s", domain.ErrAlreadyDecided, decision.ClaimID)
	}
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// GetDecision 查询终局裁决，尚未裁决时返回 nil
func (r *ClaimRepository) GetDecision(ctx context.Context, claimID string) (*domain.Decision, error) {
	var decision domain.Decision
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return &decision, nil
}

// SaveAgentTask 保存阶段任务记录（新建或更新）
func (r *ClaimRepository) SaveAgentTask(ctx context.Context, task *domain.AgentTask) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save agent task: %w", err)
	}
	return nil
}

// DeleteAgentTasks 清理某理赔的全部阶段任务
func (r *ClaimRepository) DeleteAgentTasks(ctx context.Context, claimID string) error {
	if err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).Delete(&domain.AgentTask{}).Error; err != nil {
		return fmt.Errorf("failed to delete agent tasks: %w", err)
	}
	return nil
}

// AppendAuditEvent 追加审计事件
func (r *ClaimRepository) AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents 按时间顺序列出某理赔的审计轨迹
func (r *ClaimRepository) ListAuditEvents(ctx context.Context, claimID string) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("id ASC").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

// Stats 从持久化的理赔与裁决聚合仪表盘统计
func (r *ClaimRepository) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{
		RiskDistribution: make(map[string]int64),
	}
	session := r.db.WithContext(ctx)

	terminal := []domain.ClaimStatus{domain.ClaimStatusDecided, domain.ClaimStatusFailed}
	if err := session.Model(&domain.Claim{}).
		Where("status NOT IN ?", terminal).
		Count(&stats.ActiveClaims).Error; err != nil {
		return nil, fmt.Errorf("failed to count active claims: %w", err)
	}

	if err := session.Model(&domain.FraudScore{}).
		Where("risk_level = ?", domain.RiskLevelHigh).
		Distinct("claim_id").
		Count(&stats.FraudDetected).Error; err != nil {
		return nil, fmt.Errorf("failed to count fraud detections: %w", err)
	}

	var totalDecisions, approved int64
	if err := session.Model(&domain.Decision{}).Count(&totalDecisions).Error; err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	if err := session.Model(&domain.Decision{}).
		Where("status = ?", domain.DecisionApproved).
		Count(&approved).Error; err != nil {
		return nil, fmt.Errorf("failed to count approvals: %w", err)
	}
	if totalDecisions > 0 {
		stats.ApprovalRate = float64(approved) / float64(totalDecisions)
	}

	var payout decimal.NullDecimal
	if err := session.Model(&domain.Decision{}).
		Where("status = ?", domain.DecisionApproved).
		Select("COALESCE(SUM(estimated_payout), 0)").
		Scan(&payout).Error; err != nil {
		return nil, fmt.Errorf("failed to sum payouts: %w", err)
	}
	if payout.Valid {
		stats.TotalPayout = payout.Decimal.StringFixed(2)
	} else {
		stats.TotalPayout = "0.00"
	}

	var avgMicros float64
	err := session.Model(&domain.Decision{}).
		Joins("JOIN claims ON claims.claim_id = decisions.claim_id").
		Select("COALESCE(AVG(TIMESTAMPDIFF(MICROSECOND, claims.created_at, decisions.created_at)), 0)").
		Scan(&avgMicros).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute processing time: %w", err)
	}
	stats.AvgProcessing = time.Duration(avgMicros) * time.Microsecond

	rows := []struct {
		RiskLevel string
		Total     int64
	}{}
	if err := session.Model(&domain.FraudScore{}).
		Select("risk_level, COUNT(DISTINCT claim_id) AS total").
		Group("risk_level").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to compute risk distribution: %w", err)
	}
	for _, row := range rows {
		stats.RiskDistribution[row.RiskLevel] = row.Total
	}

	return stats, nil
}

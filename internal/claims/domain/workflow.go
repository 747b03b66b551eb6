package domain

import (
	"sort"
	"time"
)

// Stage 编排阶段
type Stage string

const (
	StageIngestion     Stage = "Ingestion"
	StageInvestigation Stage = "Investigation"
	StageAdjudication  Stage = "Adjudication"
	StageConsensus     Stage = "Consensus"
)

// TaskStatus 阶段任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// AgentTask 一次理赔遍历期间某阶段的任务记录。
// 理赔到达终局裁决后删除，历史保留在审计轨迹中。
type AgentTask struct {
	ID        uint       `json:"-" gorm:"primaryKey"`
	ClaimID   string     `json:"-" gorm:"type:varchar(32);index;not null"`
	Stage     Stage      `json:"stage" gorm:"type:varchar(20);not null"`
	Status    TaskStatus `json:"status" gorm:"type:varchar(10);not null"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty" gorm:"type:text"`
	UpdatedAt time.Time  `json:"-"`
}

// TableName 指定表名
func (AgentTask) TableName() string { return "agent_tasks" }

// Recommendation 单个 agent 角色的建议
type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationDeny    Recommendation = "deny"
	RecommendationReview  Recommendation = "review"
)

// agent 角色名
const (
	RoleInvestigator Role = "investigator"
	RoleAdjudicator  Role = "adjudicator"
	RoleRiskScorer   Role = "risk_scorer"
)

// Role agent 角色
type Role string

// ConsensusRecord 多 agent 共识记录
type ConsensusRecord struct {
	AgentVotes          map[Role]Recommendation `json:"agent_votes"`
	AgreementRatio      float64                 `json:"agreement_ratio"`
	FinalRecommendation Recommendation          `json:"final_recommendation"`
}

// ComputeConsensus 聚合各角色投票。agreementRatio 为多数派占比，
// 平票时取建议的字典序最小者以保证确定性。
func ComputeConsensus(votes map[Role]Recommendation) ConsensusRecord {
	record := ConsensusRecord{AgentVotes: votes}
	if len(votes) == 0 {
		record.FinalRecommendation = RecommendationReview
		return record
	}

	counts := make(map[Recommendation]int)
	for _, v := range votes {
		counts[v]++
	}

	recs := make([]Recommendation, 0, len(counts))
	for r := range counts {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i] < recs[j] })

	best := recs[0]
	for _, r := range recs[1:] {
		if counts[r] > counts[best] {
			best = r
		}
	}

	record.FinalRecommendation = best
	record.AgreementRatio = float64(counts[best]) / float64(len(votes))
	return record
}

// RecommendationForRisk 风险评分角色的投票规则
func RecommendationForRisk(level RiskLevel) Recommendation {
	switch level {
	case RiskLevelLow:
		return RecommendationApprove
	case RiskLevelHigh:
		return RecommendationDeny
	default:
		return RecommendationReview
	}
}

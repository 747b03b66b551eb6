package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus 理赔状态机状态
type ClaimStatus string

const (
	ClaimStatusReceived      ClaimStatus = "RECEIVED"
	ClaimStatusIngesting     ClaimStatus = "INGESTING"
	ClaimStatusInvestigating ClaimStatus = "INVESTIGATING"
	ClaimStatusAdjudicating  ClaimStatus = "ADJUDICATING"
	ClaimStatusConsensus     ClaimStatus = "CONSENSUS"
	ClaimStatusDecided       ClaimStatus = "DECIDED"
	ClaimStatusFailed        ClaimStatus = "FAILED"
)

// claimTransitions 合法的状态迁移表。阶段严格顺序推进，任一非终局状态可进入 FAILED
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusReceived:      {ClaimStatusIngesting, ClaimStatusFailed},
	ClaimStatusIngesting:     {ClaimStatusInvestigating, ClaimStatusDecided, ClaimStatusFailed},
	ClaimStatusInvestigating: {ClaimStatusAdjudicating, ClaimStatusFailed},
	ClaimStatusAdjudicating:  {ClaimStatusConsensus, ClaimStatusFailed},
	ClaimStatusConsensus:     {ClaimStatusDecided, ClaimStatusFailed},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to ClaimStatus) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 判断是否终局状态
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusDecided || s == ClaimStatusFailed
}

// IncidentReport 出险报告，提交后不可变
type IncidentReport struct {
	Location       string          `json:"location" gorm:"type:varchar(255);not null"`
	OccurredAt     time.Time       `json:"occurred_at" gorm:"not null"`
	Description    string          `json:"description" gorm:"type:text;not null"`
	Injuries       bool            `json:"injuries"`
	PropertyDamage bool            `json:"property_damage"`
	ClaimedAmount  decimal.Decimal `json:"claimed_amount" gorm:"type:decimal(20,2)"`
}

// Claim 理赔聚合根。独占其 IncidentReport，对 Policy 仅持引用
type Claim struct {
	ID        uint           `json:"-" gorm:"primaryKey"`
	ClaimID   string         `json:"claim_id" gorm:"type:varchar(32);uniqueIndex;not null"`
	PolicyID  string         `json:"policy_id" gorm:"type:varchar(32);index;not null"`
	Incident  IncidentReport `json:"incident" gorm:"embedded;embeddedPrefix:incident_"`
	Status    ClaimStatus    `json:"status" gorm:"type:varchar(20);index;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
}

// TableName 指定表名
func (Claim) TableName() string { return "claims" }

// Transition 推进理赔状态，非法迁移返回 ErrInconsistentState
func (c *Claim) Transition(to ClaimStatus) error {
	if !CanTransition(c.Status, to) {
		return ErrInconsistentState
	}
	c.Status = to
	return nil
}

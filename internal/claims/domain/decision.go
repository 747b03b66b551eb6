package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionStatus 终局裁决状态
type DecisionStatus string

const (
	DecisionApproved  DecisionStatus = "approved"
	DecisionDenied    DecisionStatus = "denied"
	DecisionEscalated DecisionStatus = "escalated"
)

// Decision 终局裁决。写入后不可变，每个理赔至多一条（claim_id 唯一索引保证）
type Decision struct {
	ID      uint           `json:"-" gorm:"primaryKey"`
	ClaimID string         `json:"claim_id" gorm:"type:varchar(32);uniqueIndex;not null"`
	Status  DecisionStatus `json:"status" gorm:"type:varchar(10);index;not null"`
	// 预估赔付额。升级待人工复核时为空；不得超过保单保额
	EstimatedPayout decimal.NullDecimal `json:"estimated_payout" gorm:"type:decimal(20,2)"`
	Reasoning       string              `json:"reasoning" gorm:"type:text"`
	CreatedAt       time.Time           `json:"created_at"`
}

// TableName 指定表名
func (Decision) TableName() string { return "decisions" }

// AuditEvent 审计轨迹条目，只追加
type AuditEvent struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	ClaimID   string    `json:"claim_id" gorm:"type:varchar(32);index;not null"`
	Kind      string    `json:"kind" gorm:"type:varchar(40);not null"`
	Detail    string    `json:"detail" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (AuditEvent) TableName() string { return "audit_events" }

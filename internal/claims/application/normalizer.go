package application

import (
	"strings"
	"time"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/idgen"
)

// Normalizer 将原始出险报告校验并规范化为内部 Claim 记录。
// 除构造对象外无任何副作用。
type Normalizer struct {
	ids *idgen.Generator
	now func() time.Time
}

// NewNormalizer 创建规范化器
func NewNormalizer(ids *idgen.Generator) *Normalizer {
	return &Normalizer{ids: ids, now: time.Now}
}

// Normalize 校验入参并产出 Received 状态的 Claim。
// 任一约束不满足时返回 MalformedInputError 并指明字段。
func (n *Normalizer) Normalize(raw IncidentData, policyID string) (*domain.Claim, error) {
	if strings.TrimSpace(policyID) == "" {
		return nil, &domain.MalformedInputError{Field: "policyId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(raw.Location) == "" {
		return nil, &domain.MalformedInputError{Field: "location", Reason: "must not be empty"}
	}
	if strings.TrimSpace(raw.Description) == "" {
		return nil, &domain.MalformedInputError{Field: "description", Reason: "must not be empty"}
	}

	occurredAt, err := time.Parse(time.RFC3339, raw.DateTime)
	if err != nil {
		return nil, &domain.MalformedInputError{Field: "dateTime", Reason: "must be a valid RFC3339 timestamp"}
	}
	if occurredAt.After(n.now()) {
		return nil, &domain.MalformedInputError{Field: "dateTime", Reason: "must not be in the future"}
	}

	if raw.ClaimedAmount.IsNegative() {
		return nil, &domain.MalformedInputError{Field: "claimedAmount", Reason: "must be non-negative"}
	}

	return &domain.Claim{
		ClaimID:  n.ids.NextClaimID(),
		PolicyID: policyID,
		Incident: domain.IncidentReport{
			Location:       raw.Location,
			OccurredAt:     occurredAt,
			Description:    raw.Description,
			Injuries:       raw.Injuries,
			PropertyDamage: raw.PropertyDamage,
			ClaimedAmount:  raw.ClaimedAmount,
		},
		Status: domain.ClaimStatusReceived,
	}, nil
}

package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/idgen"
)

func validIncidentData() IncidentData {
	return IncidentData{
		Location:      "Main St",
		DateTime:      "2026-03-01T09:00:00Z",
		Description:   "minor collision",
		ClaimedAmount: decimal.NewFromInt(1000),
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(idgen.New(1))

	t.Run("produces received claim", func(t *testing.T) {
		claim, err := n.Normalize(validIncidentData(), "POL-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ClaimStatusReceived, claim.Status)
		assert.Equal(t, "POL-1", claim.PolicyID)
		assert.NotEmpty(t, claim.ClaimID)
		assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), claim.Incident.OccurredAt.UTC())
	})

	t.Run("unique claim ids", func(t *testing.T) {
		a, err := n.Normalize(validIncidentData(), "POL-1")
		require.NoError(t, err)
		b, err := n.Normalize(validIncidentData(), "POL-1")
		require.NoError(t, err)
		assert.NotEqual(t, a.ClaimID, b.ClaimID)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		cases := []struct {
			name  string
			apply func(*IncidentData, *string)
			field string
		}{
			{"empty policy", func(_ *IncidentData, p *string) { *p = " " }, "policyId"},
			{"empty location", func(d *IncidentData, _ *string) { d.Location = "" }, "location"},
			{"empty description", func(d *IncidentData, _ *string) { d.Description = "  " }, "description"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				data, policyID := validIncidentData(), "POL-1"
				tc.apply(&data, &policyID)
				_, err := n.Normalize(data, policyID)
				require.Error(t, err)
				var malformed *domain.MalformedInputError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, tc.field, malformed.Field)
			})
		}
	})

	t.Run("rejects invalid timestamp", func(t *testing.T) {
		data := validIncidentData()
		data.DateTime = "03/01/2026 9am"
		_, err := n.Normalize(data, "POL-1")
		var malformed *domain.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "dateTime", malformed.Field)
	})

	t.Run("rejects future incident", func(t *testing.T) {
		data := validIncidentData()
		data.DateTime = time.Now().Add(48 * time.Hour).Format(time.RFC3339)
		_, err := n.Normalize(data, "POL-1")
		var malformed *domain.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "dateTime", malformed.Field)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		data := validIncidentData()
		data.ClaimedAmount = decimal.NewFromInt(-5)
		_, err := n.Normalize(data, "POL-1")
		var malformed *domain.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "claimedAmount", malformed.Field)
	})
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
)

func TestParseAuditType(t *testing.T) {
	t.Run("accepts every member of the vocabulary", func(t *testing.T) {
		for raw := range validAuditTypes {
			parsed, err := ParseAuditType(string(raw))
			require.NoError(t, err)
			assert.Equal(t, raw, parsed)
		}
	})

	t.Run("rejects unknown and empty values", func(t *testing.T) {
		for _, raw := range []string{"", "unknown_type", "Supplier_Update"} {
			_, err := ParseAuditType(raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
			assert.Equal(t, "invalid audit type supplied", dErrors.MessageOf(err))
		}
	})
}

func TestAcknowledge(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("transitions an unacknowledged event", func(t *testing.T) {
		event := &AuditEvent{ID: 1, Type: TypeSupplierUpdate}

		require.True(t, event.Acknowledge("buyer@example.com", at))
		assert.True(t, event.Acknowledged)
		assert.Equal(t, at, *event.AcknowledgedAt)
		assert.Equal(t, "buyer@example.com", event.AcknowledgedBy)
	})

	t.Run("never overwrites an earlier acknowledgment", func(t *testing.T) {
		event := &AuditEvent{ID: 1, Type: TypeSupplierUpdate}
		require.True(t, event.Acknowledge("first@example.com", at))

		later := at.Add(time.Hour)
		require.False(t, event.Acknowledge("second@example.com", later))
		assert.Equal(t, at, *event.AcknowledgedAt)
		assert.Equal(t, "first@example.com", event.AcknowledgedBy)
	})
}

func TestCanonicalOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	earlier := &AuditEvent{ID: 2, CreatedAt: base}
	later := &AuditEvent{ID: 1, CreatedAt: base.Add(time.Minute)}

	t.Run("created_at dominates id", func(t *testing.T) {
		assert.True(t, earlier.Before(later))
		assert.False(t, later.Before(earlier))
	})

	t.Run("id breaks created_at ties", func(t *testing.T) {
		a := &AuditEvent{ID: 1, CreatedAt: base}
		b := &AuditEvent{ID: 2, CreatedAt: base}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})

	t.Run("AtOrBefore includes the cutoff itself", func(t *testing.T) {
		assert.True(t, earlier.AtOrBefore(earlier))
		assert.True(t, earlier.AtOrBefore(later))
		assert.False(t, later.AtOrBefore(earlier))
	})
}

func TestParseAckFilter(t *testing.T) {
	t.Run("defaults to pending when unspecified", func(t *testing.T) {
		filter, err := ParseAckFilter("")
		require.NoError(t, err)
		assert.Equal(t, AckPending, filter)
	})

	t.Run("maps the tri-state values", func(t *testing.T) {
		cases := map[string]AckFilter{"false": AckPending, "true": AckDone, "all": AckAll}
		for raw, want := range cases {
			filter, err := ParseAckFilter(raw)
			require.NoError(t, err)
			assert.Equal(t, want, filter, "value %q", raw)
		}
	})

	t.Run("rejects anything else", func(t *testing.T) {
		_, err := ParseAckFilter("yes")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("matches acknowledgment state", func(t *testing.T) {
		assert.True(t, AckPending.Matches(false))
		assert.False(t, AckPending.Matches(true))
		assert.True(t, AckDone.Matches(true))
		assert.False(t, AckDone.Matches(false))
		assert.True(t, AckAll.Matches(true))
		assert.True(t, AckAll.Matches(false))
	})
}

func TestClone(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &AuditEvent{
		ID:             7,
		Type:           TypeUpdateService,
		CreatedAt:      at,
		Data:           map[string]any{"serviceName": "old"},
		Object:         &objects.Ref{Kind: objects.KindServices, ID: 3},
		Acknowledged:   true,
		AcknowledgedAt: &at,
	}

	clone := event.Clone()
	clone.Data["serviceName"] = "new"
	clone.Object.ID = 9
	*clone.AcknowledgedAt = at.Add(time.Hour)

	assert.Equal(t, "old", event.Data["serviceName"])
	assert.Equal(t, int64(3), event.Object.ID)
	assert.Equal(t, at, *event.AcknowledgedAt)
}

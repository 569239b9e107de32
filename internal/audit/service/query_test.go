package service

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
)

func parse(t *testing.T, rawQuery string) (url.Values, error) {
	t.Helper()
	values, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	return values, nil
}

func TestParseListQueryDefaults(t *testing.T) {
	filter, page, err := ParseListQuery(url.Values{})
	require.NoError(t, err)

	assert.Equal(t, models.AckPending, filter.Ack, "unacknowledged by default")
	assert.Empty(t, filter.Type)
	assert.Nil(t, filter.Day)
	assert.False(t, filter.LatestFirst)
	assert.False(t, filter.EarliestForEachObject)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 5, page.Size)
}

func TestParseListQueryFilters(t *testing.T) {
	t.Run("audit type", func(t *testing.T) {
		values, _ := parse(t, "audit-type=update_service")
		filter, _, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, models.TypeUpdateService, filter.Type)

		values, _ = parse(t, "audit-type=nonsense")
		_, _, err = ParseListQuery(values)
		assert.Equal(t, "invalid audit type supplied", dErrors.MessageOf(err))
	})

	t.Run("audit date", func(t *testing.T) {
		values, _ := parse(t, "audit-date=2026-03-01")
		filter, _, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *filter.Day)

		for _, raw := range []string{"2026-3-1", "01-03-2026", "2026-03-01T00:00:00", "yesterday"} {
			values, _ = parse(t, "audit-date="+url.QueryEscape(raw))
			_, _, err = ParseListQuery(values)
			assert.Equal(t, "invalid audit date supplied", dErrors.MessageOf(err), "value %q", raw)
		}
	})

	t.Run("acknowledged tri-state", func(t *testing.T) {
		values, _ := parse(t, "acknowledged=all")
		filter, _, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, models.AckAll, filter.Ack)

		values, _ = parse(t, "acknowledged=maybe")
		_, _, err = ParseListQuery(values)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("object reference pair", func(t *testing.T) {
		values, _ := parse(t, "object-type=suppliers&object-id=42")
		filter, _, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, objects.KindSuppliers, filter.ObjectKind)
		assert.Equal(t, int64(42), *filter.ObjectID)
	})

	t.Run("object id requires object type", func(t *testing.T) {
		values, _ := parse(t, "object-id=42")
		_, _, err := ParseListQuery(values)
		assert.Equal(t, "object ID cannot be provided without an object type", dErrors.MessageOf(err))
	})

	t.Run("object type requires object id", func(t *testing.T) {
		values, _ := parse(t, "object-type=suppliers")
		_, _, err := ParseListQuery(values)
		assert.Equal(t, "object type cannot be provided without an object ID", dErrors.MessageOf(err))
	})

	t.Run("invalid object type and id", func(t *testing.T) {
		values, _ := parse(t, "object-type=nonsense&object-id=1")
		_, _, err := ParseListQuery(values)
		assert.Equal(t, "invalid object type supplied", dErrors.MessageOf(err))

		values, _ = parse(t, "object-type=suppliers&object-id=abc")
		_, _, err = ParseListQuery(values)
		assert.Equal(t, "invalid object ID supplied", dErrors.MessageOf(err))
	})

	t.Run("boolean flags only accept the literal true", func(t *testing.T) {
		values, _ := parse(t, "latest_first=true&earliest_for_each_object=true")
		filter, _, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.True(t, filter.LatestFirst)
		assert.True(t, filter.EarliestForEachObject)

		values, _ = parse(t, "latest_first=1&earliest_for_each_object=TRUE")
		filter, _, err = ParseListQuery(values)
		require.NoError(t, err)
		assert.False(t, filter.LatestFirst)
		assert.False(t, filter.EarliestForEachObject)
	})
}

func TestParseListQueryPagination(t *testing.T) {
	t.Run("accepts explicit page and per_page", func(t *testing.T) {
		values, _ := parse(t, "page=3&per_page=25")
		_, page, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Number)
		assert.Equal(t, 25, page.Size)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		for _, raw := range []string{"page=", "page=0", "page=-1", "page=abc", "page=1.5"} {
			values, _ := parse(t, raw)
			_, _, err := ParseListQuery(values)
			assert.Equal(t, "invalid page argument", dErrors.MessageOf(err), "query %q", raw)
		}
		for _, raw := range []string{"per_page=", "per_page=0", "per_page=101", "per_page=abc"} {
			values, _ := parse(t, raw)
			_, _, err := ParseListQuery(values)
			assert.Equal(t, "invalid per_page argument", dErrors.MessageOf(err), "query %q", raw)
		}
	})

	t.Run("caps per_page at 100", func(t *testing.T) {
		values, _ := parse(t, "per_page=100")
		_, page, err := ParseListQuery(values)
		require.NoError(t, err)
		assert.Equal(t, 100, page.Size)
	})
}

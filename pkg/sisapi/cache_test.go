package sisapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheAddMergesByID(t *testing.T) {
	cache := NewRecordCache()

	err := cache.Add(Record{"id": "1", "fullName": "Avery Park"})
	require.NoError(t, err)

	err = cache.Add(Record{"id": "1", "email": "avery@example.org"})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len())

	record, ok := cache.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Avery Park", record.String("fullName"))
	assert.Equal(t, "avery@example.org", record.String("email"))
}

func TestCacheRejectsRecordWithoutID(t *testing.T) {
	cache := NewRecordCache()

	err := cache.Add(Record{"fullName": "Avery Park"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCacheKnownFieldsGrowOnly(t *testing.T) {
	cache := NewRecordCache()

	require.NoError(t, cache.Add(Record{"id": "1", "fullName": "Avery Park"}))
	assert.True(t, cache.HasFields("fullName"))
	assert.False(t, cache.HasFields("email"))

	// Empty values never count toward coverage.
	require.NoError(t, cache.Add(Record{"id": "2", "email": ""}))
	assert.False(t, cache.HasFields("email"))

	require.NoError(t, cache.Add(Record{"id": "2", "email": "b@example.org"}))
	assert.True(t, cache.HasFields("fullName", "email"))

	// Selective invalidation keeps coverage.
	cache.Invalidate("2")
	assert.True(t, cache.HasFields("email"))

	// Full invalidation resets it.
	cache.Invalidate()
	assert.False(t, cache.HasFields("fullName"))
	assert.Equal(t, 0, cache.Len())
}

func TestCacheListSortKeyOrdering(t *testing.T) {
	cache := NewRecordCache(WithSortKey("fullName"))

	require.NoError(t, cache.Add(
		Record{"id": "1", "fullName": "Mori"},
		Record{"id": "2", "fullName": "Abe"},
		Record{"id": "3", "fullName": "Mori"},
		Record{"id": "4", "fullName": "Kato"},
	))

	records := cache.List(nil)
	require.Len(t, records, 4)

	names := make([]string, 0, len(records))
	ids := make([]string, 0, len(records))

	for _, record := range records {
		names = append(names, record.String("fullName"))
		ids = append(ids, record.String("id"))
	}

	assert.Equal(t, []string{"Abe", "Kato", "Mori", "Mori"}, names)
	// Equal sort values keep insertion order.
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids)
}

func TestCacheListInsertionOrderWithoutSortKey(t *testing.T) {
	cache := NewRecordCache()

	require.NoError(t, cache.Add(
		Record{"id": "9"},
		Record{"id": "2"},
		Record{"id": "5"},
	))

	records := cache.List(nil)
	require.Len(t, records, 3)
	assert.Equal(t, "9", records[0].String("id"))
	assert.Equal(t, "2", records[1].String("id"))
	assert.Equal(t, "5", records[2].String("id"))
}

func TestCacheListFilter(t *testing.T) {
	cache := NewRecordCache()

	require.NoError(t, cache.Add(
		Record{"id": "1", "grade": float64(9), "active": true},
		Record{"id": "2", "grade": float64(9), "active": false},
		Record{"id": "3", "grade": float64(10), "active": true},
	))

	records := cache.List(Filter{"grade": float64(9), "active": true})
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].String("id"))
}

func TestCacheListByID(t *testing.T) {
	cache := NewRecordCache()

	require.NoError(t, cache.Add(
		Record{"id": "1", "fullName": "Avery Park"},
		Record{"id": "2", "fullName": "Sam Ortiz"},
	))

	byID := cache.ListByID(nil)
	require.Len(t, byID, 2)
	assert.Equal(t, "Sam Ortiz", byID["2"].String("fullName"))
}

func TestCacheCustomIDKey(t *testing.T) {
	cache := NewRecordCache(WithIDKey("studentId"))

	require.NoError(t, cache.Add(Record{"studentId": float64(7), "gpa": 3.4}))

	record, ok := cache.Get("7")
	require.True(t, ok)
	assert.Equal(t, 3.4, record["gpa"])
}

func TestCacheGetReturnsCopy(t *testing.T) {
	cache := NewRecordCache()
	require.NoError(t, cache.Add(Record{"id": "1", "fullName": "Avery Park"}))

	record, ok := cache.Get("1")
	require.True(t, ok)

	record["fullName"] = "changed"

	fresh, _ := cache.Get("1")
	assert.Equal(t, "Avery Park", fresh.String("fullName"))
}

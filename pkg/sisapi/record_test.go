package sisapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanID(t *testing.T) {
	t.Run("string passes through", func(t *testing.T) {
		id, err := CleanID("4187")
		require.NoError(t, err)
		assert.Equal(t, "4187", id)
	})

	t.Run("int is normalized", func(t *testing.T) {
		id, err := CleanID(4187)
		require.NoError(t, err)
		assert.Equal(t, "4187", id)
	})

	t.Run("json number is normalized", func(t *testing.T) {
		id, err := CleanID(float64(4187))
		require.NoError(t, err)
		assert.Equal(t, "4187", id)
	})

	t.Run("empty string is rejected", func(t *testing.T) {
		_, err := CleanID("")
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("nil is rejected", func(t *testing.T) {
		_, err := CleanID(nil)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("slice is rejected", func(t *testing.T) {
		_, err := CleanID([]string{"4187"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestMakeID(t *testing.T) {
	assert.Equal(t, "12:34:56", MakeID("12", "34", "56"))
	assert.Equal(t, "12", MakeID("12"))
}

func TestRecordID(t *testing.T) {
	record := Record{"id": float64(42), "fullName": "Avery Park"}

	id, ok := record.ID("id")
	require.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = record.ID("missing")
	assert.False(t, ok)
}

func TestRecordMatches(t *testing.T) {
	record := Record{
		"id":       "1",
		"fullName": "Avery Park",
		"grade":    float64(9),
		"active":   true,
	}

	t.Run("conjunction of all pairs", func(t *testing.T) {
		assert.True(t, record.Matches(Filter{"fullName": "Avery Park", "active": true}))
		assert.False(t, record.Matches(Filter{"fullName": "Avery Park", "active": false}))
	})

	t.Run("missing field fails", func(t *testing.T) {
		assert.False(t, record.Matches(Filter{"homeroom": "B2"}))
	})

	t.Run("empty filter matches", func(t *testing.T) {
		assert.True(t, record.Matches(nil))
	})
}

func TestRecordFieldNames(t *testing.T) {
	record := Record{
		"id":       "1",
		"fullName": "Avery Park",
		"email":    "",
		"notes":    nil,
	}

	assert.Equal(t, []string{"fullName", "id"}, record.FieldNames())
}

func TestRecordClone(t *testing.T) {
	record := Record{"id": "1"}
	clone := record.Clone()
	clone["id"] = "2"

	assert.Equal(t, "1", record.String("id"))
}

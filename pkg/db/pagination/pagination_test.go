package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}

func TestBuildCursorPageRoundTrip(t *testing.T) {
	rows := []int64{10, 20, 30}

	page, info := BuildCursorPage(rows, 2, func(v int64) int64 { return v })
	assert.Equal(t, []int64{10, 20}, page)
	require.True(t, info.HasMore)

	after, err := Pagination{PageToken: info.NextPageToken}.AfterID()
	require.NoError(t, err)
	assert.Equal(t, int64(20), after)

	page, info = BuildCursorPage(rows[2:], 2, func(v int64) int64 { return v })
	assert.Equal(t, []int64{30}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestAfterIDRejectsGarbage(t *testing.T) {
	_, err := Pagination{PageToken: "%%%"}.AfterID()
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

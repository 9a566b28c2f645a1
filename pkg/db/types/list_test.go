package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListRoundTrip(t *testing.T) {
	list := StringList{"alice", "bob"}

	val, err := list.Value()
	require.NoError(t, err)

	var scanned StringList
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, list, scanned)
}

func TestStringListScanNilAndEmpty(t *testing.T) {
	var list StringList
	require.NoError(t, list.Scan(nil))
	assert.Empty(t, list)

	require.NoError(t, list.Scan([]byte("")))
	assert.Empty(t, list)
}

func TestStringListContains(t *testing.T) {
	list := StringList{"dealer1", "bidder1"}
	assert.True(t, list.Contains("bidder1"))
	assert.False(t, list.Contains("juror1"))
}

func TestInt64ListRoundTripAndLast(t *testing.T) {
	list := Int64List{500000, 450000}

	val, err := list.Value()
	require.NoError(t, err)

	var scanned Int64List
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, list, scanned)

	last, ok := scanned.Last()
	require.True(t, ok)
	assert.Equal(t, int64(450000), last)

	_, ok = Int64List{}.Last()
	assert.False(t, ok)
}

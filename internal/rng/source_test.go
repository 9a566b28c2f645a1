package rng

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS random_seeds (
  id INTEGER PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec(`DELETE FROM random_seeds`).Error)
	require.NoError(t, db.Create(&models.RandomSeed{ID: seedRowID, Value: 1}).Error)
	return db
}

func TestSeededSourceDrawAdvancesSeed(t *testing.T) {
	db := setupSeedTestDB(t)

	clock := time.UnixMicro(100)
	source := NewSeededSourceWithClock(func() time.Time { return clock })

	got, err := source.Draw(db, 10)
	require.NoError(t, err)

	// (1 + 100) % 65537 = 101, 101 % 10 = 1
	assert.Equal(t, int64(1), got)

	var row models.RandomSeed
	require.NoError(t, db.Where("id = ?", seedRowID).First(&row).Error)
	assert.Equal(t, int64(101), row.Value)
}

func TestSeededSourceConsecutiveDrawsDiffer(t *testing.T) {
	db := setupSeedTestDB(t)

	clock := time.UnixMicro(5000)
	source := NewSeededSourceWithClock(func() time.Time { return clock })

	first, err := source.Draw(db, 20000)
	require.NoError(t, err)
	second, err := source.Draw(db, 20000)
	require.NoError(t, err)

	// The first draw moves the seed from 1 to 5001, so a frozen clock
	// still yields a new value on the next draw.
	assert.Equal(t, int64(5001), first)
	assert.Equal(t, int64(10001), second)
	assert.NotEqual(t, first, second)

	var row models.RandomSeed
	require.NoError(t, db.Where("id = ?", seedRowID).First(&row).Error)
	assert.Equal(t, int64(10001), row.Value)
}

func TestSeededSourceDrawStaysInBound(t *testing.T) {
	db := setupSeedTestDB(t)

	source := NewSeededSource()
	for i := 0; i < 20; i++ {
		got, err := source.Draw(db, 7)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, int64(0))
		assert.Less(t, got, int64(7))
	}
}

func TestSeededSourceRejectsBadInput(t *testing.T) {
	db := setupSeedTestDB(t)
	source := NewSeededSource()

	_, err := source.Draw(nil, 3)
	assert.Error(t, err)

	_, err = source.Draw(db, 0)
	assert.Error(t, err)
}

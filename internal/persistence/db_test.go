package persistence

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stalk-market/internal/market"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "stalk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTable_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	table := market.BuildTable(100)

	require.NoError(t, db.SaveTable("run-1", table))

	got, err := db.LoadTable(100)
	require.NoError(t, err)
	assert.Equal(t, table, got)
	assert.Equal(t, 70, got.Combinations())

	obs, err := market.ParseObserved("85,80")
	require.NoError(t, err)
	assert.Equal(t, market.MatchTable(table, obs), market.MatchTable(got, obs))
}

func TestTable_Replace(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveTable("run-1", market.BuildTable(100)))
	require.NoError(t, db.SaveTable("run-2", market.BuildTable(100)))

	prices, err := db.TableBuyPrices()
	require.NoError(t, err)
	assert.Equal(t, []int{100}, prices)
}

func TestLoadTable_Missing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadTable(101)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestHasTables(t *testing.T) {
	db := openTestDB(t)
	ok, err := db.HasTables(100, 101)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SaveTable("run", market.BuildTable(100)))
	require.NoError(t, db.SaveTable("run", market.BuildTable(101)))

	ok, err = db.HasTables(100, 101)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.HasTables(99, 101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredictions_NewestFirst(t *testing.T) {
	db := openTestDB(t)

	var ids []string
	for _, buy := range []int{95, 100, 105} {
		id, err := db.SavePrediction("live", market.Predict(buy, market.Observed{}))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := db.RecentPredictions(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
	assert.Equal(t, 105, records[0].Buy)
	assert.Equal(t, 70, records[0].Surviving)
	assert.Equal(t, "live", records[0].Source)

	pred, err := records[0].Prediction()
	require.NoError(t, err)
	assert.Equal(t, market.Predict(105, market.Observed{}), pred)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetMeta("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, db.SaveMeta(MetaLastRun, "abc"))
	require.NoError(t, db.SaveMeta(MetaLastRun, "def"))
	v, err := db.GetMeta(MetaLastRun)
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveTable("run", market.BuildTable(90)))
	_, err := db.SavePrediction("table", market.Predict(90, market.Observed{}))
	require.NoError(t, err)
	require.NoError(t, db.SaveMeta(MetaLastRun, "run"))

	s, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Tables)
	assert.Positive(t, s.TableBytes)
	assert.Equal(t, 1, s.Predictions)
	assert.Equal(t, "run", s.LastRun)
}

package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleTrade(id, roundID string, executed time.Time) *HedgeTrade {
	return &HedgeTrade{
		ID:             id,
		RoundID:        roundID,
		Question:       "Bitcoin Up or Down - June 3, 3:15PM ET",
		Leg1Outcome:    "UP",
		Leg1TokenID:    "tok-up",
		Leg1Price:      decimal.NewFromFloat(0.40),
		Leg1Shares:     decimal.NewFromInt(10),
		Leg2Outcome:    "DOWN",
		Leg2TokenID:    "tok-down",
		Leg2Price:      decimal.NewFromFloat(0.50),
		Leg2Shares:     decimal.NewFromInt(10),
		CombinedCost:   decimal.NewFromFloat(9.0),
		ExpectedPayout: decimal.NewFromInt(10),
		Profit:         decimal.NewFromFloat(1.0),
		ExecutedAt:     executed,
	}
}

func TestSaveAndGetTrade(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.SaveTrade(sampleTrade("t1", "0xround1", now)))

	got, err := db.GetTrade("t1")
	require.NoError(t, err)
	assert.Equal(t, "0xround1", got.RoundID)
	assert.Equal(t, "UP", got.Leg1Outcome)
	assert.True(t, got.Leg1Price.Equal(decimal.NewFromFloat(0.40)))
	assert.True(t, got.Profit.Equal(decimal.NewFromFloat(1.0)))
}

func TestGetRecentTradesOrdering(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.SaveTrade(sampleTrade("t1", "0xr1", base.Add(-2*time.Hour))))
	require.NoError(t, db.SaveTrade(sampleTrade("t2", "0xr2", base.Add(-1*time.Hour))))
	require.NoError(t, db.SaveTrade(sampleTrade("t3", "0xr3", base)))

	trades, err := db.GetRecentTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t3", trades[0].ID)
	assert.Equal(t, "t2", trades[1].ID)
}

func TestGetTradesByRound(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.SaveTrade(sampleTrade("t1", "0xr1", now)))
	require.NoError(t, db.SaveTrade(sampleTrade("t2", "0xr2", now)))

	trades, err := db.GetTradesByRound("0xr1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestTradeStats(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.SaveTrade(sampleTrade("t1", "0xr1", now)))
	require.NoError(t, db.SaveTrade(sampleTrade("t2", "0xr2", now)))

	stats, err := db.GetTradeStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.True(t, stats.TotalCost.Equal(decimal.NewFromFloat(18.0)), "cost %s", stats.TotalCost)
	assert.True(t, stats.TotalProfit.Equal(decimal.NewFromFloat(2.0)), "profit %s", stats.TotalProfit)
}

func TestRoundSnapshotFlags(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveRound(&RoundSnapshot{
		RoundID:     "0xr1",
		Question:    "Bitcoin Up or Down",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
		EndTime:     time.Now().Add(5 * time.Minute),
		AttachedAt:  time.Now(),
	}))

	require.NoError(t, db.MarkRoundHedged("0xr1"))

	var snap RoundSnapshot
	require.NoError(t, db.db.Where("round_id = ?", "0xr1").First(&snap).Error)
	assert.True(t, snap.Triggered)
	assert.True(t, snap.Hedged)
}

package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDropRequiresTwoSamples(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	_, ok := h.drop("tok")
	assert.False(t, ok)

	h.record("tok", d("0.60"), base)
	_, ok = h.drop("tok")
	assert.False(t, ok)
}

func TestDropAgainstOldestInWindow(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	h.record("tok", d("0.60"), base)
	h.record("tok", d("0.60"), base.Add(1*time.Second))
	h.record("tok", d("0.40"), base.Add(2*time.Second))

	frac, ok := h.drop("tok")
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, frac.InexactFloat64(), 1e-9)
}

func TestDropExcludesSamplesOlderThanWindow(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	// 0.80 falls outside the 3s window at measurement time but survives
	// the trim slack; it must not be used as the reference price.
	h.record("tok", d("0.80"), base)
	h.record("tok", d("0.60"), base.Add(1*time.Second))
	h.record("tok", d("0.45"), base.Add(3500*time.Millisecond))

	frac, ok := h.drop("tok")
	require.True(t, ok)
	assert.InDelta(t, 0.25, frac.InexactFloat64(), 1e-9)
}

func TestRiseClampsToZero(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	h.record("tok", d("0.40"), base)
	h.record("tok", d("0.60"), base.Add(1*time.Second))

	frac, ok := h.drop("tok")
	require.True(t, ok)
	assert.True(t, frac.IsZero())
}

func TestFlatPricesReportZeroDrop(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	h.record("tok", d("0.50"), base)
	h.record("tok", d("0.50"), base.Add(1*time.Second))

	frac, ok := h.drop("tok")
	require.True(t, ok)
	assert.True(t, frac.IsZero())
}

func TestRecordEvictsStaleSamples(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	h.record("tok", d("0.90"), base)
	h.record("tok", d("0.50"), base.Add(10*time.Second))
	h.record("tok", d("0.48"), base.Add(11*time.Second))

	assert.Len(t, h.points["tok"], 2)

	frac, ok := h.drop("tok")
	require.True(t, ok)
	assert.InDelta(t, 0.04, frac.InexactFloat64(), 1e-9)
}

func TestLastAndClear(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	_, ok := h.last("tok")
	assert.False(t, ok)

	h.record("tok", d("0.60"), base)
	h.record("tok", d("0.55"), base.Add(time.Second))

	last, ok := h.last("tok")
	require.True(t, ok)
	assert.True(t, last.Equal(d("0.55")))

	h.clear()
	_, ok = h.last("tok")
	assert.False(t, ok)
}

func TestTokensTrackedIndependently(t *testing.T) {
	h := newPriceHistory(3 * time.Second)
	base := time.Now()

	h.record("up", d("0.60"), base)
	h.record("up", d("0.40"), base.Add(time.Second))
	h.record("down", d("0.40"), base)
	h.record("down", d("0.42"), base.Add(time.Second))

	upDrop, ok := h.drop("up")
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, upDrop.InexactFloat64(), 1e-9)

	downDrop, ok := h.drop("down")
	require.True(t, ok)
	assert.True(t, downDrop.IsZero())
}

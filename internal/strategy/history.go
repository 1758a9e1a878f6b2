package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// historyTrimSlack keeps samples slightly past the detection window so the
// oldest in-window sample is never evicted prematurely.
const historyTrimSlack = time.Second

type pricePoint struct {
	price decimal.Decimal
	ts    time.Time
}

// priceHistory holds a short trailing window of samples per token.
// Old samples are evicted eagerly on every insert.
type priceHistory struct {
	window time.Duration
	points map[string][]pricePoint
}

func newPriceHistory(window time.Duration) *priceHistory {
	return &priceHistory{
		window: window,
		points: make(map[string][]pricePoint),
	}
}

func (h *priceHistory) record(tokenID string, price decimal.Decimal, ts time.Time) {
	q := append(h.points[tokenID], pricePoint{price: price, ts: ts})

	cutoff := ts.Add(-(h.window + historyTrimSlack))
	start := 0
	for start < len(q) && q[start].ts.Before(cutoff) {
		start++
	}
	h.points[tokenID] = q[start:]
}

// last returns the most recent sample for a token
func (h *priceHistory) last(tokenID string) (decimal.Decimal, bool) {
	q := h.points[tokenID]
	if len(q) == 0 {
		return decimal.Zero, false
	}
	return q[len(q)-1].price, true
}

// drop returns the fractional price fall over the detection window,
// measured against the oldest sample still inside it. A rise clamps to
// zero; it never reports a negative drop. Needs at least two samples.
func (h *priceHistory) drop(tokenID string) (decimal.Decimal, bool) {
	q := h.points[tokenID]
	if len(q) < 2 {
		return decimal.Zero, false
	}

	newest := q[len(q)-1]
	cutoff := newest.ts.Add(-h.window)

	var oldest decimal.Decimal
	found := false
	for _, p := range q {
		if !p.ts.Before(cutoff) {
			oldest = p.price
			found = true
			break
		}
	}
	if !found || oldest.IsZero() {
		return decimal.Zero, false
	}

	frac := oldest.Sub(newest.price).Div(oldest)
	if frac.IsNegative() {
		return decimal.Zero, true
	}
	return frac, true
}

func (h *priceHistory) clear() {
	h.points = make(map[string][]pricePoint)
}

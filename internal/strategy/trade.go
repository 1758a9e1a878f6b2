package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/polymarket"
)

// Params are the tunable strategy settings
type Params struct {
	Shares        decimal.Decimal // shares per leg
	HedgeSum      decimal.Decimal // max leg1 entry + leg2 ask
	MoveThreshold decimal.Decimal // fractional drop that arms leg 1
	WindowMinutes float64         // leg-1 watch period after round start
	DropWindowSec float64         // trailing drop detection window

	// ForceCloseOnExpiry sells an unhedged leg 1 at round end instead of
	// leaving the position to resolve on its own.
	ForceCloseOnExpiry bool
}

// Position is an executed leg awaiting its counterpart or resolution
type Position struct {
	Leg     int
	Outcome polymarket.Outcome
	TokenID string
	Price   decimal.Decimal
	Shares  decimal.Decimal
}

// Trade is an immutable record of one completed two-leg round trip.
// Created once leg 2 fills; never mutated afterwards.
type Trade struct {
	ID       string
	RoundID  string
	Question string

	Leg1Outcome polymarket.Outcome
	Leg1TokenID string
	Leg1Price   decimal.Decimal
	Leg1Shares  decimal.Decimal

	Leg2Outcome polymarket.Outcome
	Leg2TokenID string
	Leg2Price   decimal.Decimal
	Leg2Shares  decimal.Decimal

	CombinedCost   decimal.Decimal
	ExpectedPayout decimal.Decimal // winning side redeems 1 per share
	Profit         decimal.Decimal

	Timestamp time.Time
}

// Summary renders a one-line trade description for logs and the console
func (t Trade) Summary() string {
	roundID := t.RoundID
	if len(roundID) > 8 {
		roundID = roundID[:8]
	}
	pct := decimal.Zero
	if t.CombinedCost.IsPositive() {
		pct = t.Profit.Div(t.CombinedCost).Mul(decimal.NewFromInt(100))
	}
	return fmt.Sprintf("Round=%s | Leg1=%s@%s | Leg2=%s@%s | Cost=%s | Profit=%s (%s%%)",
		roundID,
		t.Leg1Outcome, t.Leg1Price.StringFixed(4),
		t.Leg2Outcome, t.Leg2Price.StringFixed(4),
		t.CombinedCost.StringFixed(4),
		t.Profit.StringFixed(4),
		pct.StringFixed(1),
	)
}

// Status is a point-in-time snapshot of the engine
type Status struct {
	Enabled          bool
	State            State
	Round            string
	SecondsRemaining float64
	OpenPositions    []Position
	TradesCompleted  int
	TotalCost        decimal.Decimal
	TotalProfit      decimal.Decimal
	ROIPct           decimal.Decimal
	Params           Params
}

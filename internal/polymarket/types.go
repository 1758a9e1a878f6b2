// Package polymarket provides Polymarket API integration
package polymarket

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome labels one side of a binary round
type Outcome string

const (
	OutcomeUp   Outcome = "UP"
	OutcomeDown Outcome = "DOWN"
)

// Opposite returns the other side of the binary
func (o Outcome) Opposite() Outcome {
	if o == OutcomeUp {
		return OutcomeDown
	}
	return OutcomeUp
}

// Token is one tradeable outcome of a round
type Token struct {
	ID      string
	Outcome Outcome
	Price   decimal.Decimal // last known price from discovery, 0 when unknown
}

// Round is one up/down window: a paired UP and DOWN token sharing a condition.
// Rounds are immutable snapshots; discovery supersedes them, never mutates.
type Round struct {
	ConditionID string
	Question    string
	Slug        string
	Up          Token
	Down        Token
	StartTime   time.Time
	EndTime     time.Time
}

// Active reports whether the round has not yet ended
func (r Round) Active(now time.Time) bool {
	return r.EndTime.IsZero() || r.EndTime.After(now)
}

// SecondsRemaining returns time left until the round resolves
func (r Round) SecondsRemaining(now time.Time) float64 {
	if r.EndTime.IsZero() {
		return 0
	}
	left := r.EndTime.Sub(now).Seconds()
	if left < 0 {
		return 0
	}
	return left
}

// TokenIDs returns both token identifiers for feed subscription
func (r Round) TokenIDs() []string {
	return []string{r.Up.ID, r.Down.ID}
}

// TokenByID resolves a token identifier to its side of the round
func (r Round) TokenByID(id string) (Token, bool) {
	switch id {
	case r.Up.ID:
		return r.Up, true
	case r.Down.ID:
		return r.Down, true
	}
	return Token{}, false
}

// OppositeToken returns the paired token for a given side
func (r Round) OppositeToken(o Outcome) Token {
	if o == OutcomeUp {
		return r.Down
	}
	return r.Up
}

// BookLevel is one price level of an order book
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is an order book snapshot for a single token
type Book struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the highest bid, false when the bid side is empty
func (b Book) BestBid() (decimal.Decimal, bool) {
	best := decimal.Zero
	found := false
	for _, lvl := range b.Bids {
		if !found || lvl.Price.GreaterThan(best) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}

// BestAsk returns the lowest ask, false when the ask side is empty
func (b Book) BestAsk() (decimal.Decimal, bool) {
	best := decimal.Zero
	found := false
	for _, lvl := range b.Asks {
		if !found || lvl.Price.LessThan(best) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}

// Mid returns the bid/ask midpoint, degrading to whichever side exists,
// then to the fallback price when the book is empty.
func (b Book) Mid(fallback decimal.Decimal) decimal.Decimal {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	switch {
	case hasBid && hasAsk:
		return bid.Add(ask).Div(decimal.NewFromInt(2))
	case hasAsk:
		return ask
	case hasBid:
		return bid
	}
	return fallback
}

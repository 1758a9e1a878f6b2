// Package trader defines the order-execution boundary. The engine treats
// every order as atomic-or-failed; partial fills are not modeled.
package trader

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/polymarket"
)

// OrderResult is the outcome of one market order attempt. A failed order
// carries Err and leaves the strategy free to retry on the next signal.
type OrderResult struct {
	Success      bool
	OrderID      string
	FilledPrice  decimal.Decimal
	FilledShares decimal.Decimal
	Err          error
}

// Trader places market orders for outcome tokens
type Trader interface {
	// BuyMarket buys shares of a token, paying at most maxPrice per share
	BuyMarket(ctx context.Context, tokenID string, outcome polymarket.Outcome, shares, maxPrice decimal.Decimal) OrderResult

	// SellMarket sells shares of a token, accepting at least minPrice per share
	SellMarket(ctx context.Context, tokenID string, outcome polymarket.Outcome, shares, minPrice decimal.Decimal) OrderResult
}

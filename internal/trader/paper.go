package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/polymarket"
)

// PaperTrader simulates execution: buys fill instantly at the price ceiling,
// sells at the floor. No real orders leave the process.
type PaperTrader struct{}

// NewPaperTrader creates a simulated executor
func NewPaperTrader() *PaperTrader {
	log.Warn().Msg("🧪 Paper trader active — no real orders will be placed")
	return &PaperTrader{}
}

// BuyMarket fills at maxPrice
func (t *PaperTrader) BuyMarket(ctx context.Context, tokenID string, outcome polymarket.Outcome, shares, maxPrice decimal.Decimal) OrderResult {
	orderID := "paper-" + uuid.NewString()

	log.Info().
		Str("order_id", orderID).
		Str("outcome", string(outcome)).
		Str("shares", shares.String()).
		Str("max_price", maxPrice.String()).
		Msg("🧪 [PAPER] BUY filled")

	return OrderResult{
		Success:      true,
		OrderID:      orderID,
		FilledPrice:  maxPrice,
		FilledShares: shares,
	}
}

// SellMarket fills at minPrice
func (t *PaperTrader) SellMarket(ctx context.Context, tokenID string, outcome polymarket.Outcome, shares, minPrice decimal.Decimal) OrderResult {
	orderID := "paper-" + uuid.NewString()

	log.Info().
		Str("order_id", orderID).
		Str("outcome", string(outcome)).
		Str("shares", shares.String()).
		Str("min_price", minPrice.String()).
		Msg("🧪 [PAPER] SELL filled")

	return OrderResult{
		Success:      true,
		OrderID:      orderID,
		FilledPrice:  minPrice,
		FilledShares: shares,
	}
}

package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/polymarket"
	"github.com/web3guy0/hedgebot/internal/trader"
)

// RoundSource supplies discoverable rounds, soonest-ending first
type RoundSource interface {
	FetchActiveRounds(ctx context.Context) []polymarket.Round
}

// Subscriber manages the live price subscriptions for a token set
type Subscriber interface {
	Subscribe(tokenIDs ...string) error
	Unsubscribe(tokenIDs ...string) error
}

// TradeCallback receives each completed trade after leg 2 fills
type TradeCallback func(t Trade)

// RoundCallback receives each round the engine attaches to
type RoundCallback func(r polymarket.Round, attachedAt time.Time)

// Engine runs the two-leg hedge strategy over 5-minute binary rounds.
//
// Leg 1 buys a side whose price dropped sharply during the watch window;
// leg 2 buys the opposite side once the pair can be completed below the
// hedge sum, locking in payout minus combined cost regardless of outcome.
//
// A single mutex serializes every price-driven transition. It stays held
// across order placement so no second tick can act on a half-updated
// state; order latency therefore delays tick processing, which is an
// accepted cost for the small books these rounds trade on.
type Engine struct {
	mu sync.Mutex

	params  Params
	rounds  RoundSource
	sub     Subscriber
	exec    trader.Trader
	onTrade TradeCallback
	onRound RoundCallback

	enabled bool
	state   State

	round      *polymarket.Round
	attachedAt time.Time
	history    *priceHistory

	leg1       *Position
	leg2Target polymarket.Token

	trades      []Trade
	totalCost   decimal.Decimal
	totalProfit decimal.Decimal

	pollInterval time.Duration
	now          func() time.Time

	running bool
	stopCh  chan struct{}
}

// NewEngine wires the strategy against its round source, price
// subscriber and order executor
func NewEngine(rounds RoundSource, sub Subscriber, exec trader.Trader, params Params, pollInterval time.Duration) *Engine {
	dropWindow := time.Duration(params.DropWindowSec * float64(time.Second))
	return &Engine{
		params:       params,
		rounds:       rounds,
		sub:          sub,
		exec:         exec,
		state:        StateIdle,
		history:      newPriceHistory(dropWindow),
		totalCost:    decimal.Zero,
		totalProfit:  decimal.Zero,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// SetTradeCallback registers the completed-trade notification hook
func (e *Engine) SetTradeCallback(cb TradeCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrade = cb
}

// SetRoundCallback registers the round-attached notification hook
func (e *Engine) SetRoundCallback(cb RoundCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRound = cb
}

// Configure replaces the strategy parameters. Takes effect on the next
// transition; an in-flight leg keeps the values it was opened with. The
// detection window survives unless its length actually changed.
func (e *Engine) Configure(params Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if params.DropWindowSec != e.params.DropWindowSec {
		e.history = newPriceHistory(time.Duration(params.DropWindowSec * float64(time.Second)))
	}
	e.params = params
	log.Info().
		Str("shares", params.Shares.String()).
		Str("hedge_sum", params.HedgeSum.String()).
		Str("move_threshold", params.MoveThreshold.String()).
		Float64("window_minutes", params.WindowMinutes).
		Float64("drop_window_sec", params.DropWindowSec).
		Msg("⚙️ Strategy reconfigured")
}

// Params returns the current strategy settings
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Enable arms the strategy; the next poll attaches a round
func (e *Engine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return
	}
	e.enabled = true
	log.Info().Msg("✅ Auto-trading enabled")
}

// Disable stops all trading and detaches from the current round.
// Open positions are kept on the books but no further orders fire.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return
	}
	e.enabled = false
	e.detachLocked()
	log.Info().Msg("🛑 Auto-trading disabled")
}

// Enabled reports whether auto-trading is armed
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// detachLocked drops the round association and returns to idle.
// Caller holds e.mu.
func (e *Engine) detachLocked() {
	if e.round != nil && e.sub != nil {
		if err := e.sub.Unsubscribe(e.round.TokenIDs()...); err != nil {
			log.Warn().Err(err).Msg("⚠️ Unsubscribe failed during detach")
		}
	}
	e.round = nil
	e.leg1 = nil
	e.leg2Target = polymarket.Token{}
	e.history.clear()
	e.state = StateIdle
}

// AttachRound binds the engine to a round and opens its watch window
func (e *Engine) AttachRound(r polymarket.Round) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attachLocked(r)
}

func (e *Engine) attachLocked(r polymarket.Round) {
	e.round = &r
	e.attachedAt = e.now()
	e.leg1 = nil
	e.leg2Target = polymarket.Token{}
	e.history.clear()
	e.state = StateWatching

	log.Info().
		Str("round", shortID(r.ConditionID)).
		Str("question", r.Question).
		Float64("seconds_remaining", r.SecondsRemaining(e.now())).
		Msg("🎯 Watching round")

	if e.onRound != nil {
		go e.onRound(r, e.attachedAt)
	}
}

// OnPriceUpdate feeds one tick into the state machine. Safe to call
// from the feed goroutine; ordering within a token follows call order.
func (e *Engine) OnPriceUpdate(tokenID string, price decimal.Decimal, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || e.round == nil {
		return
	}
	if _, ok := e.round.TokenByID(tokenID); !ok {
		return
	}

	e.history.record(tokenID, price, ts)

	switch e.state {
	case StateWatching:
		e.handleWatching()
	case StateLeg1Filled:
		e.handleLeg1Filled(tokenID, price)
	}
}

// handleWatching looks for the leg-1 trigger: a fractional drop at or
// above MoveThreshold inside the drop window, while the watch window is
// still open. Both sides are evaluated on every tick, so a
// still-qualifying drop can fire even when the other token ticked.
// Caller holds e.mu.
func (e *Engine) handleWatching() {
	if e.watchWindowExpired() {
		log.Info().
			Str("round", shortID(e.round.ConditionID)).
			Msg("⌛ Watch window closed without a trigger")
		e.state = StateIdle
		return
	}

	for _, tok := range []polymarket.Token{e.round.Up, e.round.Down} {
		frac, ok := e.history.drop(tok.ID)
		if !ok || frac.LessThan(e.params.MoveThreshold) {
			continue
		}
		price, ok := e.history.last(tok.ID)
		if !ok {
			continue
		}
		log.Info().
			Str("outcome", string(tok.Outcome)).
			Str("price", price.StringFixed(4)).
			Str("drop", frac.StringFixed(4)).
			Msg("📉 Drop trigger")
		e.triggerLeg1(tok, price)
		return
	}
}

func (e *Engine) watchWindowExpired() bool {
	window := time.Duration(e.params.WindowMinutes * float64(time.Minute))
	return e.now().Sub(e.attachedAt) > window
}

// triggerLeg1 places the first leg. The state flips to Leg1Filled
// before the order goes out; on failure it reverts to Watching so the
// trigger can re-arm. Caller holds e.mu across the order call.
func (e *Engine) triggerLeg1(tok polymarket.Token, price decimal.Decimal) {
	roundID := e.round.ConditionID
	e.state = StateLeg1Filled

	res := e.exec.BuyMarket(context.Background(), tok.ID, tok.Outcome, e.params.Shares, price)

	// Stale-result guard: a disable or re-attach during the order call
	// means this result no longer applies.
	if e.round == nil || e.round.ConditionID != roundID || e.state != StateLeg1Filled {
		log.Warn().Str("round", shortID(roundID)).Msg("⚠️ Discarding stale leg-1 result")
		return
	}

	if !res.Success {
		log.Error().Err(res.Err).
			Str("outcome", string(tok.Outcome)).
			Msg("❌ Leg 1 order failed, re-arming trigger")
		e.state = StateWatching
		return
	}

	e.leg1 = &Position{
		Leg:     1,
		Outcome: tok.Outcome,
		TokenID: tok.ID,
		Price:   res.FilledPrice,
		Shares:  res.FilledShares,
	}
	e.leg2Target = e.round.OppositeToken(tok.Outcome)

	log.Info().
		Str("outcome", string(tok.Outcome)).
		Str("fill", res.FilledPrice.StringFixed(4)).
		Str("shares", res.FilledShares.String()).
		Str("order", res.OrderID).
		Msg("🟢 Leg 1 filled")
}

// handleLeg1Filled waits for the opposite side to get cheap enough to
// complete the hedge: leg1 entry + current ask <= HedgeSum.
// Caller holds e.mu.
func (e *Engine) handleLeg1Filled(tokenID string, price decimal.Decimal) {
	if e.leg1 == nil || e.leg2Target.ID == "" {
		return
	}
	if tokenID != e.leg2Target.ID {
		return
	}

	combined := e.leg1.Price.Add(price)
	if combined.GreaterThan(e.params.HedgeSum) {
		return
	}

	log.Info().
		Str("leg1", e.leg1.Price.StringFixed(4)).
		Str("leg2_ask", price.StringFixed(4)).
		Str("combined", combined.StringFixed(4)).
		Msg("🔒 Hedge condition met")
	e.triggerLeg2(price)
}

// triggerLeg2 completes the hedge. On failure the state stays in
// Leg1Filled so the next qualifying tick retries.
// Caller holds e.mu.
func (e *Engine) triggerLeg2(price decimal.Decimal) {
	roundID := e.round.ConditionID
	tok := e.leg2Target

	res := e.exec.BuyMarket(context.Background(), tok.ID, tok.Outcome, e.params.Shares, price)

	if e.round == nil || e.round.ConditionID != roundID || e.state != StateLeg1Filled || e.leg1 == nil {
		log.Warn().Str("round", shortID(roundID)).Msg("⚠️ Discarding stale leg-2 result")
		return
	}

	if !res.Success {
		log.Error().Err(res.Err).
			Str("outcome", string(tok.Outcome)).
			Msg("❌ Leg 2 order failed, will retry on next tick")
		return
	}

	e.state = StateLeg2Filled

	leg1 := *e.leg1
	combinedCost := leg1.Price.Mul(leg1.Shares).Add(res.FilledPrice.Mul(res.FilledShares))
	payout := leg1.Shares // one side redeems at 1
	profit := payout.Sub(combinedCost)

	t := Trade{
		ID:             uuid.NewString(),
		RoundID:        roundID,
		Question:       e.round.Question,
		Leg1Outcome:    leg1.Outcome,
		Leg1TokenID:    leg1.TokenID,
		Leg1Price:      leg1.Price,
		Leg1Shares:     leg1.Shares,
		Leg2Outcome:    tok.Outcome,
		Leg2TokenID:    tok.ID,
		Leg2Price:      res.FilledPrice,
		Leg2Shares:     res.FilledShares,
		CombinedCost:   combinedCost,
		ExpectedPayout: payout,
		Profit:         profit,
		Timestamp:      e.now(),
	}

	e.trades = append(e.trades, t)
	e.totalCost = e.totalCost.Add(combinedCost)
	e.totalProfit = e.totalProfit.Add(profit)

	e.leg1 = nil
	e.leg2Target = polymarket.Token{}
	e.state = StateReset

	log.Info().
		Str("trade", t.ID).
		Str("cost", combinedCost.StringFixed(4)).
		Str("profit", profit.StringFixed(4)).
		Msg("💰 Hedge complete")

	if e.onTrade != nil {
		go e.onTrade(t)
	}
}

// Status snapshots the engine for display surfaces
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Enabled:         e.enabled,
		State:           e.state,
		TradesCompleted: len(e.trades),
		TotalCost:       e.totalCost,
		TotalProfit:     e.totalProfit,
		ROIPct:          decimal.Zero,
		Params:          e.params,
	}
	if e.totalCost.IsPositive() {
		s.ROIPct = e.totalProfit.Div(e.totalCost).Mul(decimal.NewFromInt(100))
	}
	if e.round != nil {
		s.Round = e.round.Question
		s.SecondsRemaining = e.round.SecondsRemaining(e.now())
	}
	if e.leg1 != nil {
		s.OpenPositions = append(s.OpenPositions, *e.leg1)
	}
	return s
}

// RecentTrades returns up to n completed trades, newest first
func (e *Engine) RecentTrades(n int) []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n <= 0 || n > len(e.trades) {
		n = len(e.trades)
	}
	out := make([]Trade, 0, n)
	for i := len(e.trades) - 1; i >= len(e.trades)-n; i-- {
		out = append(out, e.trades[i])
	}
	return out
}

// Start launches the round discovery loop
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	go e.pollLoop(ctx)
	log.Info().Dur("interval", e.pollInterval).Msg("🚀 Strategy engine started")
}

// Stop shuts the discovery loop down
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()
	log.Info().Msg("👋 Strategy engine stopped")
}

func (e *Engine) pollLoop(ctx context.Context) {
	e.pollOnce(ctx)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

// pollOnce drives round rollover: expire the current round, discover
// the next, attach when the engine is between rounds
func (e *Engine) pollOnce(ctx context.Context) {
	e.mu.Lock()
	enabled := e.enabled
	e.mu.Unlock()
	if !enabled {
		return
	}

	e.checkRoundExpiry(ctx)

	rounds := e.rounds.FetchActiveRounds(ctx)
	if len(rounds) == 0 {
		log.Debug().Msg("🔍 No active rounds found")
		return
	}
	e.maybeAttach(rounds[0])
}

// checkRoundExpiry clears out a round whose end time has passed. An
// unhedged leg 1 is either force-closed at the last observed price or
// left to resolve naturally, per configuration.
func (e *Engine) checkRoundExpiry(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round == nil || e.round.Active(e.now()) {
		return
	}

	roundID := e.round.ConditionID
	log.Info().Str("round", shortID(roundID)).Msg("🏁 Round ended")

	if e.state == StateLeg1Filled && e.leg1 != nil {
		if e.params.ForceCloseOnExpiry {
			e.forceCloseLeg1(ctx)
		} else {
			log.Info().
				Str("outcome", string(e.leg1.Outcome)).
				Str("entry", e.leg1.Price.StringFixed(4)).
				Msg("🎲 Unhedged leg 1 left to resolution")
		}
	}

	e.detachLocked()
}

// forceCloseLeg1 sells the open leg at the last seen price and books
// the realized result. Caller holds e.mu.
func (e *Engine) forceCloseLeg1(ctx context.Context) {
	leg := *e.leg1

	exit, ok := e.history.last(leg.TokenID)
	if !ok {
		exit = leg.Price
	}

	res := e.exec.SellMarket(ctx, leg.TokenID, leg.Outcome, leg.Shares, exit)
	if !res.Success {
		log.Error().Err(res.Err).Msg("❌ Force close failed, leaving position to resolution")
		return
	}

	cost := leg.Price.Mul(leg.Shares)
	pnl := res.FilledPrice.Sub(leg.Price).Mul(res.FilledShares)
	e.totalCost = e.totalCost.Add(cost)
	e.totalProfit = e.totalProfit.Add(pnl)

	log.Info().
		Str("exit", res.FilledPrice.StringFixed(4)).
		Str("pnl", pnl.StringFixed(4)).
		Msg("🔚 Leg 1 force-closed at round end")
}

// maybeAttach switches to a new round when the engine is between
// rounds. A round in progress is never abandoned mid-trade.
func (e *Engine) maybeAttach(r polymarket.Round) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round != nil && e.round.ConditionID == r.ConditionID {
		return
	}
	if e.round != nil && e.state != StateIdle && e.state != StateReset {
		return
	}

	if e.round != nil && e.sub != nil {
		if err := e.sub.Unsubscribe(e.round.TokenIDs()...); err != nil {
			log.Warn().Err(err).Msg("⚠️ Unsubscribe failed during rollover")
		}
	}
	if e.sub != nil {
		if err := e.sub.Subscribe(r.TokenIDs()...); err != nil {
			log.Error().Err(err).Str("round", shortID(r.ConditionID)).Msg("❌ Subscribe failed, skipping round")
			return
		}
	}

	e.attachLocked(r)
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "…"
	}
	return id
}

// Hedgebot - Drop + Hedge Trading Bot for Polymarket
//
// This bot trades Bitcoin Up/Down 5-minute prediction rounds with a
// two-leg hedge:
// 1. Watch both sides of a fresh round for a sharp price drop
// 2. Buy the dropped side (leg 1)
// 3. Wait until leg1 entry + opposite ask fits under the hedge sum
// 4. Buy the opposite side (leg 2), locking in payout minus cost
// 5. One side always redeems at $1 on resolution
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/hedgebot/internal/bot"
	"github.com/web3guy0/hedgebot/internal/config"
	"github.com/web3guy0/hedgebot/internal/console"
	"github.com/web3guy0/hedgebot/internal/database"
	"github.com/web3guy0/hedgebot/internal/feed"
	"github.com/web3guy0/hedgebot/internal/polymarket"
	"github.com/web3guy0/hedgebot/internal/strategy"
	"github.com/web3guy0/hedgebot/internal/trader"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("asset", cfg.TradingAsset).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Hedgebot starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// ====== CORE COMPONENTS ======

	// 1. Round finder - discovers active 5-minute Up/Down rounds
	finder := polymarket.NewFinder(cfg.GammaAPIURL, cfg.CLOBAPIURL, cfg.TradingAsset)

	// 2. Price feed - live CLOB book updates over WebSocket
	priceFeed := feed.New(cfg.CLOBWSURL, cfg.WSReconnectDelay, cfg.WSMaxReconnects)

	// 3. Trader - paper execution unless live credentials land
	var exec trader.Trader = trader.NewPaperTrader()
	if !cfg.DryRun {
		log.Warn().Msg("⚠️ Live execution not configured - falling back to paper trading")
	}

	// 4. Strategy engine
	params := strategy.Params{
		Shares:             cfg.Shares,
		HedgeSum:           cfg.HedgeSum,
		MoveThreshold:      cfg.MoveThreshold,
		WindowMinutes:      cfg.WindowMinutes,
		DropWindowSec:      cfg.DropWindowSec,
		ForceCloseOnExpiry: cfg.ForceCloseOnExpiry,
	}
	engine := strategy.NewEngine(finder, priceFeed, exec, params, cfg.PollInterval)

	// Ticks flow straight from the feed into the state machine
	priceFeed.SetHandler(engine.OnPriceUpdate)

	// 5. Optional Telegram control surface
	var tg *bot.TelegramBot
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err = bot.New(cfg.TelegramToken, cfg.TelegramChatID, engine)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram bot unavailable")
		} else {
			tg.Start()
		}
	}

	// Journal each round the engine picks up
	engine.SetRoundCallback(func(r polymarket.Round, attachedAt time.Time) {
		err := db.SaveRound(&database.RoundSnapshot{
			RoundID:     r.ConditionID,
			Question:    r.Question,
			UpTokenID:   r.Up.ID,
			DownTokenID: r.Down.ID,
			EndTime:     r.EndTime,
			AttachedAt:  attachedAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to persist round")
		}
	})

	// Persist and announce each completed hedge
	engine.SetTradeCallback(func(t strategy.Trade) {
		rec := &database.HedgeTrade{
			ID:             t.ID,
			RoundID:        t.RoundID,
			Question:       t.Question,
			Leg1Outcome:    string(t.Leg1Outcome),
			Leg1TokenID:    t.Leg1TokenID,
			Leg1Price:      t.Leg1Price,
			Leg1Shares:     t.Leg1Shares,
			Leg2Outcome:    string(t.Leg2Outcome),
			Leg2TokenID:    t.Leg2TokenID,
			Leg2Price:      t.Leg2Price,
			Leg2Shares:     t.Leg2Shares,
			CombinedCost:   t.CombinedCost,
			ExpectedPayout: t.ExpectedPayout,
			Profit:         t.Profit,
			ExecutedAt:     t.Timestamp,
		}
		if err := db.SaveTrade(rec); err != nil {
			log.Error().Err(err).Str("trade", t.ID).Msg("Failed to persist trade")
		}
		if err := db.MarkRoundHedged(t.RoundID); err != nil {
			log.Error().Err(err).Msg("Failed to flag round as hedged")
		}
		if tg != nil {
			tg.NotifyTrade(t)
		}
		log.Info().Msg("✅ " + t.Summary())
	})

	// ====== START ======

	priceFeed.Start()
	engine.Start(ctx)
	engine.Enable()

	if tg != nil {
		mode := "LIVE"
		if cfg.DryRun {
			mode = "PAPER"
		}
		tg.NotifyStartup(mode)
	}

	// Interactive console on stdin
	cons := console.New(engine, os.Stdin, os.Stdout)
	go cons.Run()

	// Wait for shutdown signal or console quit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("🛑 Shutdown signal received")
	case <-cons.Done():
		log.Info().Msg("🛑 Console quit")
	case <-ctx.Done():
	}

	// ====== GRACEFUL SHUTDOWN ======

	engine.Disable()
	engine.Stop()
	priceFeed.Stop()
	if tg != nil {
		tg.Stop()
	}
	cancel()

	log.Info().Msg("👋 Hedgebot stopped")
}

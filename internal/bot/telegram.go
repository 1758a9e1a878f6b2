package bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/strategy"
)

// TelegramBot is the remote control and notification surface.
// Optional: the bot only runs when a token is configured.
type TelegramBot struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	engine *strategy.Engine
}

// New connects to the Telegram API and binds the control chat
func New(token string, chatID int64, engine *strategy.Engine) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		engine: engine,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")
	return b, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// NotifyTrade announces a completed hedge
func (b *TelegramBot) NotifyTrade(t strategy.Trade) {
	msg := fmt.Sprintf(`💰 *HEDGE COMPLETE*

📊 %s
━━━━━━━━━━━━━━━━
🟢 Leg 1: %s @ *%s¢*
🔵 Leg 2: %s @ *%s¢*
━━━━━━━━━━━━━━━━
💵 Cost: *$%s*
📈 Locked profit: *$%s*`,
		t.Question,
		t.Leg1Outcome, toCents(t.Leg1Price),
		t.Leg2Outcome, toCents(t.Leg2Price),
		t.CombinedCost.StringFixed(2),
		t.Profit.StringFixed(2),
	)
	b.sendMarkdown(msg)
}

// NotifyError sends an error alert
func (b *TelegramBot) NotifyError(err error) {
	b.sendMarkdown(fmt.Sprintf("⚠️ *ERROR*\n\n`%s`", err.Error()))
}

// NotifyStartup sends the startup banner
func (b *TelegramBot) NotifyStartup(mode string) {
	p := b.engine.Params()
	msg := fmt.Sprintf(`🚀 *HEDGEBOT STARTED*
━━━━━━━━━━━━━━━━━━━━

🎯 Strategy: *Drop + Hedge*
📊 Mode: *%s*
📦 Shares: *%s*
🔒 Hedge sum: *%s*
📉 Move threshold: *%s*

Use /help for commands`,
		mode, p.Shares.String(), p.HedgeSum.String(), p.MoveThreshold.String())
	b.sendMarkdown(msg)
}

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Only respond to authorized chat
			if update.Message.Chat.ID != b.chatID {
				continue
			}

			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "history":
		b.cmdHistory()
	case "auto":
		b.cmdAuto(args)
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	msg := `🤖 *HEDGEBOT COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — Engine state & totals
📜 /history — Last 10 trades
▶️ /auto on — Enable trading
⏸️ /auto off — Disable trading
🏓 /ping — Test connection`

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdStatus() {
	s := b.engine.Status()

	state := "⏸️ OFF"
	if s.Enabled {
		state = "🟢 ON"
	}
	round := s.Round
	if round == "" {
		round = "none"
	}

	msg := fmt.Sprintf(`📊 *BOT STATUS*
━━━━━━━━━━━━━━━━━━━━

Auto-trading: %s
State: *%s*
Round: %s
⏳ Seconds left: *%.0f*

📊 Trades: *%d*
💵 Total cost: *$%s*
📈 Total profit: *$%s*
📊 ROI: *%s%%*`,
		state, s.State, round, s.SecondsRemaining,
		s.TradesCompleted,
		s.TotalCost.StringFixed(2),
		s.TotalProfit.StringFixed(2),
		s.ROIPct.StringFixed(2),
	)
	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdHistory() {
	trades := b.engine.RecentTrades(10)
	if len(trades) == 0 {
		b.send("📭 No trades yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *RECENT TRADES*\n━━━━━━━━━━━━━━━━━━━━\n")
	for _, t := range trades {
		fmt.Fprintf(&sb, "\n%s  %s@%s¢ + %s@%s¢ → *$%s*",
			t.Timestamp.Format("15:04"),
			t.Leg1Outcome, toCents(t.Leg1Price),
			t.Leg2Outcome, toCents(t.Leg2Price),
			t.Profit.StringFixed(2),
		)
	}
	b.sendMarkdown(sb.String())
}

func (b *TelegramBot) cmdAuto(args string) {
	switch strings.ToLower(args) {
	case "on":
		b.engine.Enable()
		b.send("▶️ Auto-trading enabled")
	case "off":
		b.engine.Disable()
		b.send("⏸️ Auto-trading disabled")
	default:
		b.send("Usage: /auto on|off")
	}
}

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func toCents(p decimal.Decimal) string {
	return p.Mul(decimal.NewFromInt(100)).StringFixed(1)
}

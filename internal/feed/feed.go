// Package feed maintains the streaming price connection to the CLOB
// market-data channel and fans normalized ticks out to a single handler.
package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	maxReconnectDelay = 30 * time.Second
	pingInterval      = 20 * time.Second
)

// Handler receives one normalized price tick. It is invoked synchronously
// from the read loop, so implementations must be quick.
type Handler func(tokenID string, price decimal.Decimal, ts time.Time)

// PriceFeed manages a persistent WebSocket connection with automatic
// reconnect and re-subscription.
type PriceFeed struct {
	wsURL          string
	reconnectDelay time.Duration
	maxReconnects  int // 0 = unlimited
	pingEvery      time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]bool
	handler    Handler
	running    bool
	stopCh     chan struct{}

	pricesMu sync.RWMutex
	prices   map[string]decimal.Decimal
}

// New creates a feed for the given endpoint
func New(wsURL string, reconnectDelay time.Duration, maxReconnects int) *PriceFeed {
	return &PriceFeed{
		wsURL:          wsURL,
		reconnectDelay: reconnectDelay,
		maxReconnects:  maxReconnects,
		pingEvery:      pingInterval,
		subscribed:     make(map[string]bool),
		stopCh:         make(chan struct{}),
		prices:         make(map[string]decimal.Decimal),
	}
}

// SetHandler sets the tick handler. Must be called before Start.
func (f *PriceFeed) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// Start begins the connection loop
func (f *PriceFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("📡 Price feed started")
}

// Stop closes the connection and halts reconnection
func (f *PriceFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}
	log.Info().Msg("Price feed stopped")
}

// Subscribe adds tokens to the subscription set and, when connected,
// subscribes them immediately. The full set is replayed after reconnects.
func (f *PriceFeed) Subscribe(tokenIDs ...string) error {
	f.mu.Lock()
	fresh := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id != "" && !f.subscribed[id] {
			f.subscribed[id] = true
			fresh = append(fresh, id)
		}
	}
	conn := f.conn
	f.mu.Unlock()

	if len(fresh) == 0 || conn == nil {
		return nil
	}
	log.Info().Strs("tokens", shorten(fresh)).Msg("📡 Subscribing")
	return f.send(conn, subscribeMsg{Type: "market", AssetIDs: fresh})
}

// Unsubscribe removes tokens from the subscription set
func (f *PriceFeed) Unsubscribe(tokenIDs ...string) error {
	f.mu.Lock()
	removed := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if f.subscribed[id] {
			delete(f.subscribed, id)
			removed = append(removed, id)
		}
	}
	conn := f.conn
	f.mu.Unlock()

	if len(removed) == 0 || conn == nil {
		return nil
	}
	log.Info().Strs("tokens", shorten(removed)).Msg("Unsubscribing")
	return f.send(conn, subscribeMsg{Type: "unsubscribe", AssetIDs: removed})
}

// LastPrice returns the most recent normalized price for a token
func (f *PriceFeed) LastPrice(tokenID string) (decimal.Decimal, bool) {
	f.pricesMu.RLock()
	defer f.pricesMu.RUnlock()
	p, ok := f.prices[tokenID]
	return p, ok
}

type subscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

func (f *PriceFeed) send(conn *websocket.Conn, msg subscribeMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// connectionLoop dials, reads until failure, then reconnects with
// exponential backoff capped at 30s. The attempt counter resets after
// every successful connection.
func (f *PriceFeed) connectionLoop() {
	attempts := 0

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket dial failed")
		} else {
			log.Info().Msg("🔌 WebSocket connected")
			attempts = 0

			f.mu.Lock()
			f.conn = conn
			current := make([]string, 0, len(f.subscribed))
			for id := range f.subscribed {
				current = append(current, id)
			}
			f.mu.Unlock()

			// replay the full subscription set on every (re)connect
			if len(current) > 0 {
				if err := f.send(conn, subscribeMsg{Type: "market", AssetIDs: current}); err != nil {
					log.Warn().Err(err).Msg("Re-subscribe failed")
				}
			}

			done := make(chan struct{})
			go f.pingLoop(conn, done)
			f.readLoop(conn)
			close(done)

			f.mu.Lock()
			f.conn = nil
			f.mu.Unlock()
			conn.Close()
		}

		select {
		case <-f.stopCh:
			return
		default:
		}

		attempts++
		if f.maxReconnects > 0 && attempts > f.maxReconnects {
			log.Error().Int("attempts", attempts-1).Msg("Reconnect limit reached, feed giving up")
			return
		}

		delay := backoffDelay(f.reconnectDelay, attempts)
		log.Info().Dur("delay", delay).Int("attempt", attempts).Msg("Reconnecting...")
		select {
		case <-f.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// backoffDelay doubles the base delay per attempt, capped at 30s
func backoffDelay(base time.Duration, attempt int) time.Duration {
	shift := attempt - 1
	if shift > 4 {
		shift = 4
	}
	d := base * (1 << uint(shift))
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// pingLoop keeps the connection alive. Control frames go out through
// WriteControl, which is safe alongside subscribe writes from other
// goroutines.
func (f *PriceFeed) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(f.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-done:
			return
		case <-ticker.C:
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
	}
}

func (f *PriceFeed) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket read error")
			return
		}
		f.processMessage(message)
	}
}

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wsPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// wsMessage covers the event shapes the market channel sends: book
// snapshots, price_change batches and last_trade_price events.
type wsMessage struct {
	EventType    string          `json:"event_type"`
	AssetID      string          `json:"asset_id"`
	Price        string          `json:"price"`
	Bids         []wsLevel       `json:"bids"`
	Asks         []wsLevel       `json:"asks"`
	PriceChanges []wsPriceChange `json:"price_changes"`
}

func (f *PriceFeed) processMessage(data []byte) {
	var msgs []wsMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var single wsMessage
		if err := json.Unmarshal(data, &single); err != nil {
			return
		}
		msgs = []wsMessage{single}
	}

	for _, msg := range msgs {
		switch msg.EventType {
		case "book":
			f.handleBook(msg)
		case "price_change":
			f.handlePriceChanges(msg)
		case "last_trade_price", "tick":
			f.emit(msg.AssetID, parsePrice(msg.Price))
		}
	}
}

func (f *PriceFeed) handleBook(msg wsMessage) {
	var bestBid, bestAsk decimal.Decimal
	hasBid, hasAsk := false, false

	for _, lvl := range msg.Bids {
		p := parsePrice(lvl.Price)
		if p.IsZero() {
			continue
		}
		if !hasBid || p.GreaterThan(bestBid) {
			bestBid = p
			hasBid = true
		}
	}
	for _, lvl := range msg.Asks {
		p := parsePrice(lvl.Price)
		if p.IsZero() {
			continue
		}
		if !hasAsk || p.LessThan(bestAsk) {
			bestAsk = p
			hasAsk = true
		}
	}

	f.emit(msg.AssetID, normalize(decimal.Zero, bestBid, hasBid, bestAsk, hasAsk))
}

func (f *PriceFeed) handlePriceChanges(msg wsMessage) {
	for _, change := range msg.PriceChanges {
		bid := parsePrice(change.BestBid)
		ask := parsePrice(change.BestAsk)
		price := normalize(parsePrice(change.Price), bid, !bid.IsZero(), ask, !ask.IsZero())
		f.emit(change.AssetID, price)
	}
}

// normalize prefers the direct traded price, then falls back to the
// bid/ask midpoint, then to whichever side exists.
func normalize(direct, bid decimal.Decimal, hasBid bool, ask decimal.Decimal, hasAsk bool) decimal.Decimal {
	switch {
	case !direct.IsZero():
		return direct
	case hasBid && hasAsk:
		return bid.Add(ask).Div(decimal.NewFromInt(2))
	case hasAsk:
		return ask
	case hasBid:
		return bid
	}
	return decimal.Zero
}

func (f *PriceFeed) emit(tokenID string, price decimal.Decimal) {
	if tokenID == "" || price.IsZero() {
		return
	}

	f.mu.Lock()
	subscribed := f.subscribed[tokenID]
	handler := f.handler
	f.mu.Unlock()

	if !subscribed {
		return
	}

	f.pricesMu.Lock()
	f.prices[tokenID] = price
	f.pricesMu.Unlock()

	if handler != nil {
		handler(tokenID, price, time.Now())
	}
}

func parsePrice(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return p
}

func shorten(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if len(id) > 8 {
			out[i] = id[:8] + "..."
		} else {
			out[i] = id
		}
	}
	return out
}

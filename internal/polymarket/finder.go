// finder.go - Discovers active up/down rounds via the Gamma REST API.
// Each round pairs one UP and one DOWN token under a shared condition ID.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	upRe   = regexp.MustCompile(`(?i)\bup\b`)
	downRe = regexp.MustCompile(`(?i)\bdown\b`)
)

// Finder discovers active rounds for one asset
type Finder struct {
	client  *Client
	asset   string
	assetRe *regexp.Regexp
}

// NewFinder creates a finder for the given asset keyword
func NewFinder(gammaURL, clobURL, asset string) *Finder {
	return &Finder{
		client:  NewClient(gammaURL, clobURL),
		asset:   strings.ToUpper(asset),
		assetRe: assetPattern(asset),
	}
}

func assetPattern(asset string) *regexp.Regexp {
	switch strings.ToUpper(asset) {
	case "BTC":
		return regexp.MustCompile(`(?i)\b(btc|bitcoin)\b`)
	case "ETH":
		return regexp.MustCompile(`(?i)\b(eth|ethereum)\b`)
	case "SOL":
		return regexp.MustCompile(`(?i)\b(sol|solana)\b`)
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(asset)) + `\b`)
}

// gammaToken is the inline token variant of a Gamma market entry
type gammaToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

// gammaMarket is one raw market entry from the Gamma /markets endpoint.
// Outcomes, OutcomePrices and ClobTokenIds arrive as stringified JSON arrays.
type gammaMarket struct {
	ID            string       `json:"id"`
	ConditionID   string       `json:"conditionId"`
	Question      string       `json:"question"`
	Slug          string       `json:"slug"`
	Active        bool         `json:"active"`
	Closed        bool         `json:"closed"`
	StartDate     string       `json:"startDate"`
	EndDate       string       `json:"endDate"`
	Outcomes      string       `json:"outcomes"`
	OutcomePrices string       `json:"outcomePrices"`
	ClobTokenIds  string       `json:"clobTokenIds"`
	Tokens        []gammaToken `json:"tokens"`
}

// FetchActiveRounds queries Gamma for active up/down markets and pairs them
// into rounds, soonest-ending first. Rounds already past their end time are
// dropped. On any network or parse error the error is logged and an empty
// slice returned; the caller retries on its own poll cadence.
func (f *Finder) FetchActiveRounds(ctx context.Context) []Round {
	raw, err := f.fetchAllMarkets(ctx)
	if err != nil {
		log.Error().Err(err).Str("asset", f.asset).Msg("Failed to fetch markets from Gamma")
		return nil
	}

	now := time.Now()
	byCondition := make(map[string][]gammaMarket)
	order := make([]string, 0)

	for _, m := range raw {
		if !f.matchesRound(m.Question) {
			continue
		}
		cid := m.ConditionID
		if cid == "" {
			cid = m.ID
		}
		if cid == "" {
			continue
		}
		if _, seen := byCondition[cid]; !seen {
			order = append(order, cid)
		}
		byCondition[cid] = append(byCondition[cid], m)
	}

	rounds := make([]Round, 0, len(byCondition))
	for _, cid := range order {
		// entries for one condition may differ in completeness; the
		// first that yields both tokens wins
		for _, m := range byCondition[cid] {
			r, ok := parseRound(cid, m)
			if !ok {
				continue
			}
			if r.Active(now) {
				rounds = append(rounds, r)
			}
			break
		}
	}

	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].EndTime.Before(rounds[j].EndTime)
	})

	log.Debug().
		Int("raw", len(raw)).
		Int("rounds", len(rounds)).
		Str("asset", f.asset).
		Msg("Resolved active rounds")

	return rounds
}

// matchesRound applies the two-criteria filter: the question must mention
// the asset AND either "up" or "down".
func (f *Finder) matchesRound(question string) bool {
	if !f.assetRe.MatchString(question) {
		return false
	}
	return upRe.MatchString(question) || downRe.MatchString(question)
}

func (f *Finder) fetchAllMarkets(ctx context.Context) ([]gammaMarket, error) {
	const pageSize = 100
	all := make([]gammaMarket, 0, pageSize)

	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("limit", fmt.Sprintf("%d", pageSize))
		params.Set("offset", fmt.Sprintf("%d", offset))

		pageURL := fmt.Sprintf("%s/markets?%s", f.client.gammaURL, params.Encode())

		var page json.RawMessage
		if err := f.client.getJSON(ctx, pageURL, &page); err != nil {
			return nil, err
		}

		batch, err := decodeMarketsPage(page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	return all, nil
}

// decodeMarketsPage accepts either a bare array or an envelope object;
// Gamma has shipped both shapes.
func decodeMarketsPage(page json.RawMessage) ([]gammaMarket, error) {
	var list []gammaMarket
	if err := json.Unmarshal(page, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Data    []gammaMarket `json:"data"`
		Markets []gammaMarket `json:"markets"`
	}
	if err := json.Unmarshal(page, &envelope); err != nil {
		return nil, fmt.Errorf("unrecognized markets payload: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Markets, nil
}

// parseRound extracts the UP/DOWN token pair from one market entry.
// The inline token list is preferred; the stringified parallel
// outcomes/clobTokenIds arrays are the fallback.
func parseRound(cid string, m gammaMarket) (Round, bool) {
	up, down, ok := extractTokens(m)
	if !ok {
		return Round{}, false
	}

	r := Round{
		ConditionID: cid,
		Question:    m.Question,
		Slug:        m.Slug,
		Up:          up,
		Down:        down,
	}
	if m.StartDate != "" {
		r.StartTime, _ = time.Parse(time.RFC3339, m.StartDate)
	}
	if m.EndDate != "" {
		r.EndTime, _ = time.Parse(time.RFC3339, m.EndDate)
	}
	return r, true
}

func extractTokens(m gammaMarket) (up, down Token, ok bool) {
	for _, tok := range m.Tokens {
		outcome := strings.ToUpper(tok.Outcome)
		switch {
		case strings.Contains(outcome, "UP") || outcome == "YES":
			up = Token{ID: tok.TokenID, Outcome: OutcomeUp, Price: decimal.NewFromFloat(tok.Price)}
		case strings.Contains(outcome, "DOWN") || outcome == "NO":
			down = Token{ID: tok.TokenID, Outcome: OutcomeDown, Price: decimal.NewFromFloat(tok.Price)}
		}
	}
	if up.ID != "" && down.ID != "" {
		return up, down, true
	}

	// Fallback: parallel stringified arrays
	var outcomes, tokenIDs, prices []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return Token{}, Token{}, false
	}
	if err := json.Unmarshal([]byte(m.ClobTokenIds), &tokenIDs); err != nil {
		return Token{}, Token{}, false
	}
	if m.OutcomePrices != "" {
		_ = json.Unmarshal([]byte(m.OutcomePrices), &prices)
	}

	for i, outcome := range outcomes {
		if i >= len(tokenIDs) {
			break
		}
		price := decimal.Zero
		if i < len(prices) {
			price, _ = decimal.NewFromString(prices[i])
		}
		o := strings.ToUpper(outcome)
		switch {
		case strings.Contains(o, "UP") || o == "YES":
			up = Token{ID: tokenIDs[i], Outcome: OutcomeUp, Price: price}
		case strings.Contains(o, "DOWN") || o == "NO":
			down = Token{ID: tokenIDs[i], Outcome: OutcomeDown, Price: price}
		}
	}

	if up.ID == "" || down.ID == "" {
		return Token{}, Token{}, false
	}
	return up, down, true
}

// clobBook is the raw CLOB /book response
type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// FetchOrderBook fetches the current order book for a token from the CLOB
func (f *Finder) FetchOrderBook(ctx context.Context, tokenID string) (Book, error) {
	bookURL := fmt.Sprintf("%s/book?token_id=%s", f.client.clobURL, url.QueryEscape(tokenID))

	var raw clobBook
	if err := f.client.getJSON(ctx, bookURL, &raw); err != nil {
		return Book{}, err
	}

	book := Book{
		Bids: make([]BookLevel, 0, len(raw.Bids)),
		Asks: make([]BookLevel, 0, len(raw.Asks)),
	}
	for _, lvl := range raw.Bids {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, _ := decimal.NewFromString(lvl.Size)
		book.Bids = append(book.Bids, BookLevel{Price: price, Size: size})
	}
	for _, lvl := range raw.Asks {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, _ := decimal.NewFromString(lvl.Size)
		book.Asks = append(book.Asks, BookLevel{Price: price, Size: size})
	}
	return book, nil
}

// MidPrices returns REST mid-prices for both sides of a round, used as a
// fallback before the streaming feed has produced a tick. Book failures
// degrade to the last known static token price.
func (f *Finder) MidPrices(ctx context.Context, r Round) (upMid, downMid decimal.Decimal) {
	upBook, err := f.FetchOrderBook(ctx, r.Up.ID)
	if err != nil {
		log.Warn().Err(err).Str("token", shortID(r.Up.ID)).Msg("Order book fetch failed")
	}
	downBook, err := f.FetchOrderBook(ctx, r.Down.ID)
	if err != nil {
		log.Warn().Err(err).Str("token", shortID(r.Down.ID)).Msg("Order book fetch failed")
	}
	return upBook.Mid(r.Up.Price), downBook.Mid(r.Down.Price)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

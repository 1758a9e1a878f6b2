package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func gammaFixture(future, past string) string {
	return fmt.Sprintf(`[
		{
			"conditionId": "0xbtc1",
			"question": "Bitcoin Up or Down - June 3, 3:15PM ET",
			"slug": "bitcoin-up-or-down",
			"active": true,
			"closed": false,
			"endDate": %q,
			"outcomes": "[\"Up\", \"Down\"]",
			"outcomePrices": "[\"0.52\", \"0.48\"]",
			"clobTokenIds": "[\"tok-up-1\", \"tok-down-1\"]"
		},
		{
			"conditionId": "0xbtc1",
			"question": "Bitcoin Up or Down - June 3, 3:15PM ET",
			"active": true,
			"closed": false,
			"endDate": %q,
			"outcomes": "[\"Up\", \"Down\"]",
			"outcomePrices": "[\"0.52\", \"0.48\"]",
			"clobTokenIds": "[\"tok-up-1\", \"tok-down-1\"]"
		},
		{
			"conditionId": "0xrain",
			"question": "Will it rain in NYC tomorrow?",
			"active": true,
			"closed": false,
			"endDate": %q,
			"outcomes": "[\"Yes\", \"No\"]",
			"clobTokenIds": "[\"tok-rain-y\", \"tok-rain-n\"]"
		},
		{
			"conditionId": "0xbtcold",
			"question": "Bitcoin Up or Down - June 3, 3:05PM ET",
			"active": true,
			"closed": false,
			"endDate": %q,
			"outcomes": "[\"Up\", \"Down\"]",
			"clobTokenIds": "[\"tok-up-old\", \"tok-down-old\"]"
		},
		{
			"conditionId": "0xeth1",
			"question": "Ethereum Up or Down - June 3, 3:15PM ET",
			"active": true,
			"closed": false,
			"endDate": %q,
			"outcomes": "[\"Up\", \"Down\"]",
			"clobTokenIds": "[\"tok-eth-u\", \"tok-eth-d\"]"
		}
	]`, future, future, future, past, future)
}

func newGammaServer(t *testing.T) *httptest.Server {
	future := time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339)
	past := time.Now().Add(-10 * time.Minute).UTC().Format(time.RFC3339)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets":
			if r.URL.Query().Get("offset") != "0" {
				fmt.Fprint(w, "[]")
				return
			}
			fmt.Fprint(w, gammaFixture(future, past))
		case "/book":
			fmt.Fprint(w, `{
				"bids": [{"price": "0.47", "size": "100"}, {"price": "0.48", "size": "50"}],
				"asks": [{"price": "0.53", "size": "70"}, {"price": "0.52", "size": "30"}]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFetchActiveRoundsFiltersAndPairs(t *testing.T) {
	srv := newGammaServer(t)
	defer srv.Close()

	f := NewFinder(srv.URL, srv.URL, "BTC")
	rounds := f.FetchActiveRounds(context.Background())

	// one BTC round: the rain market and ETH round fail the filter, the
	// old BTC round already ended, and the duplicate entry collapses
	require.Len(t, rounds, 1)

	r := rounds[0]
	assert.Equal(t, "0xbtc1", r.ConditionID)
	assert.Equal(t, "tok-up-1", r.Up.ID)
	assert.Equal(t, OutcomeUp, r.Up.Outcome)
	assert.True(t, r.Up.Price.Equal(d("0.52")))
	assert.Equal(t, "tok-down-1", r.Down.ID)
	assert.Equal(t, OutcomeDown, r.Down.Outcome)
	assert.True(t, r.Down.Price.Equal(d("0.48")))
	assert.True(t, r.Active(time.Now()))
}

func TestFetchActiveRoundsTriesEveryConditionEntry(t *testing.T) {
	future := time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			fmt.Fprint(w, "[]")
			return
		}
		// first entry for the condition is missing its token ids; the
		// second carries the full pair
		fmt.Fprintf(w, `[
			{"conditionId": "0xbtc1", "question": "Bitcoin Up or Down - June 3", "endDate": %q,
			 "outcomes": "[\"Up\", \"Down\"]", "clobTokenIds": ""},
			{"conditionId": "0xbtc1", "question": "Bitcoin Up or Down - June 3", "endDate": %q,
			 "outcomes": "[\"Up\", \"Down\"]", "clobTokenIds": "[\"tok-up-1\", \"tok-down-1\"]"}
		]`, future, future)
	}))
	defer srv.Close()

	f := NewFinder(srv.URL, srv.URL, "BTC")
	rounds := f.FetchActiveRounds(context.Background())

	require.Len(t, rounds, 1)
	assert.Equal(t, "tok-up-1", rounds[0].Up.ID)
	assert.Equal(t, "tok-down-1", rounds[0].Down.ID)
}

func TestFetchActiveRoundsEmptyOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFinder(srv.URL, srv.URL, "BTC")
	rounds := f.FetchActiveRounds(context.Background())
	assert.Empty(t, rounds)
}

func TestFetchActiveRoundsSortsByEndTime(t *testing.T) {
	soon := time.Now().Add(2 * time.Minute).UTC().Format(time.RFC3339)
	later := time.Now().Add(7 * time.Minute).UTC().Format(time.RFC3339)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprintf(w, `[
			{"conditionId": "0xlater", "question": "Bitcoin Up or Down - later", "endDate": %q,
			 "outcomes": "[\"Up\", \"Down\"]", "clobTokenIds": "[\"lu\", \"ld\"]"},
			{"conditionId": "0xsoon", "question": "Bitcoin Up or Down - soon", "endDate": %q,
			 "outcomes": "[\"Up\", \"Down\"]", "clobTokenIds": "[\"su\", \"sd\"]"}
		]`, later, soon)
	}))
	defer srv.Close()

	f := NewFinder(srv.URL, srv.URL, "BTC")
	rounds := f.FetchActiveRounds(context.Background())

	require.Len(t, rounds, 2)
	assert.Equal(t, "0xsoon", rounds[0].ConditionID)
	assert.Equal(t, "0xlater", rounds[1].ConditionID)
}

func TestMatchesRound(t *testing.T) {
	f := NewFinder("http://unused", "http://unused", "BTC")

	tests := []struct {
		question string
		want     bool
	}{
		{"Bitcoin Up or Down - June 3, 3:15PM ET", true},
		{"BTC Up or Down?", true},
		{"Will Bitcoin close up today?", true},
		{"Bitcoin above $100k by July?", false},
		{"Ethereum Up or Down - June 3", false},
		{"Will it rain in NYC tomorrow?", false},
		{"Cupertino updates planned?", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.matchesRound(tt.question), tt.question)
	}
}

func TestExtractTokensPrefersInlineList(t *testing.T) {
	m := gammaMarket{
		Tokens: []gammaToken{
			{TokenID: "inline-up", Outcome: "Up", Price: 0.61},
			{TokenID: "inline-down", Outcome: "Down", Price: 0.39},
		},
		// parallel arrays present but must be ignored
		Outcomes:     `["Up", "Down"]`,
		ClobTokenIds: `["arr-up", "arr-down"]`,
	}

	up, down, ok := extractTokens(m)
	require.True(t, ok)
	assert.Equal(t, "inline-up", up.ID)
	assert.Equal(t, "inline-down", down.ID)
	assert.True(t, up.Price.Equal(d("0.61")))
}

func TestExtractTokensYesNoAliases(t *testing.T) {
	m := gammaMarket{
		Outcomes:     `["Yes", "No"]`,
		ClobTokenIds: `["tok-y", "tok-n"]`,
	}

	up, down, ok := extractTokens(m)
	require.True(t, ok)
	assert.Equal(t, "tok-y", up.ID)
	assert.Equal(t, OutcomeUp, up.Outcome)
	assert.Equal(t, "tok-n", down.ID)
	assert.Equal(t, OutcomeDown, down.Outcome)
}

func TestExtractTokensRejectsIncompletePair(t *testing.T) {
	m := gammaMarket{
		Outcomes:     `["Up"]`,
		ClobTokenIds: `["tok-up"]`,
	}

	_, _, ok := extractTokens(m)
	assert.False(t, ok)
}

func TestDecodeMarketsPageShapes(t *testing.T) {
	bare := json.RawMessage(`[{"conditionId": "0x1"}]`)
	list, err := decodeMarketsPage(bare)
	require.NoError(t, err)
	require.Len(t, list, 1)

	envelope := json.RawMessage(`{"data": [{"conditionId": "0x2"}]}`)
	list, err = decodeMarketsPage(envelope)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "0x2", list[0].ConditionID)

	markets := json.RawMessage(`{"markets": [{"conditionId": "0x3"}]}`)
	list, err = decodeMarketsPage(markets)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "0x3", list[0].ConditionID)

	_, err = decodeMarketsPage(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}

func TestFetchOrderBook(t *testing.T) {
	srv := newGammaServer(t)
	defer srv.Close()

	f := NewFinder(srv.URL, srv.URL, "BTC")
	book, err := f.FetchOrderBook(context.Background(), "tok-up-1")
	require.NoError(t, err)

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(d("0.48")))

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(d("0.52")))

	assert.True(t, book.Mid(decimal.Zero).Equal(d("0.5")))
}

func TestBookMidDegrades(t *testing.T) {
	askOnly := Book{Asks: []BookLevel{{Price: d("0.52")}}}
	assert.True(t, askOnly.Mid(d("0.99")).Equal(d("0.52")))

	bidOnly := Book{Bids: []BookLevel{{Price: d("0.48")}}}
	assert.True(t, bidOnly.Mid(d("0.99")).Equal(d("0.48")))

	empty := Book{}
	assert.True(t, empty.Mid(d("0.99")).Equal(d("0.99")))
}

package polymarket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeOpposite(t *testing.T) {
	assert.Equal(t, OutcomeDown, OutcomeUp.Opposite())
	assert.Equal(t, OutcomeUp, OutcomeDown.Opposite())
}

func TestRoundLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 3, 15, 12, 0, 0, time.UTC)
	r := Round{
		ConditionID: "0x1",
		Up:          Token{ID: "u", Outcome: OutcomeUp},
		Down:        Token{ID: "d", Outcome: OutcomeDown},
		EndTime:     now.Add(3 * time.Minute),
	}

	assert.True(t, r.Active(now))
	assert.False(t, r.Active(now.Add(4*time.Minute)))
	assert.InDelta(t, 180, r.SecondsRemaining(now), 0.001)
	assert.Equal(t, float64(0), r.SecondsRemaining(now.Add(10*time.Minute)))

	// a round without an end time never expires
	open := Round{}
	assert.True(t, open.Active(now))
	assert.Equal(t, float64(0), open.SecondsRemaining(now))
}

func TestRoundTokenLookups(t *testing.T) {
	r := Round{
		Up:   Token{ID: "u", Outcome: OutcomeUp},
		Down: Token{ID: "d", Outcome: OutcomeDown},
	}

	assert.Equal(t, []string{"u", "d"}, r.TokenIDs())

	tok, ok := r.TokenByID("u")
	assert.True(t, ok)
	assert.Equal(t, OutcomeUp, tok.Outcome)

	_, ok = r.TokenByID("x")
	assert.False(t, ok)

	assert.Equal(t, "d", r.OppositeToken(OutcomeUp).ID)
	assert.Equal(t, "u", r.OppositeToken(OutcomeDown).ID)
}

package strategy

// State is the engine's position in the two-leg cycle:
//
//	Idle → Watching → Leg1Filled → Leg2Filled → Reset → Watching (next round)
//
// Idle is also the fallback when the observation window expires or the
// strategy is disabled.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateLeg1Filled
	StateLeg2Filled
	StateReset
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWatching:
		return "WATCHING"
	case StateLeg1Filled:
		return "LEG1_FILLED"
	case StateLeg2Filled:
		return "LEG2_FILLED"
	case StateReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// Package render turns diagram descriptions into images through ordered tiers:
// a local toolchain, a hosted service, and finally the description alone.
package render

import (
	"fmt"
)

// State is a position in the render state machine.
//
//	SourceGenerated ──attempt──▶ RenderAttempted ──success──▶ Rendered
//	       │                        │   ▲
//	       │                        └───┘ attempt (next tier)
//	       └──────give up──────▶ SourceOnly ◀──give up──┘
type State string

const (
	StateSourceGenerated State = "source-generated"
	StateRenderAttempted State = "render-attempted"
	StateRendered        State = "rendered"
	StateSourceOnly      State = "source-only"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateRendered || s == StateSourceOnly
}

// Tier is a rendering strategy
type Tier string

const (
	TierLocal      Tier = "local"
	TierOnline     Tier = "online"
	TierSourceOnly Tier = "source-only"
)

// Event drives a state transition
type Event string

const (
	EventAttempt Event = "attempt"
	EventSuccess Event = "success"
	EventGiveUp  Event = "give-up"
)

// selectTier picks the first tier to try.
func selectTier(localReady, onlineReachable bool) Tier {
	switch {
	case localReady:
		return TierLocal
	case onlineReachable:
		return TierOnline
	default:
		return TierSourceOnly
	}
}

// fallbackTier returns the tier to try after failed did not produce an artifact.
func fallbackTier(failed Tier, onlineReachable bool) Tier {
	if failed == TierLocal && onlineReachable {
		return TierOnline
	}
	return TierSourceOnly
}

// eventFor maps the tier about to run to the event it triggers.
func eventFor(t Tier) Event {
	if t == TierSourceOnly {
		return EventGiveUp
	}
	return EventAttempt
}

// transition applies ev to s.
func transition(s State, ev Event) (State, error) {
	switch s {
	case StateSourceGenerated:
		switch ev {
		case EventAttempt:
			return StateRenderAttempted, nil
		case EventGiveUp:
			return StateSourceOnly, nil
		}
	case StateRenderAttempted:
		switch ev {
		case EventAttempt:
			return StateRenderAttempted, nil
		case EventSuccess:
			return StateRendered, nil
		case EventGiveUp:
			return StateSourceOnly, nil
		}
	}
	return s, fmt.Errorf("invalid render transition: %s on %s", ev, s)
}

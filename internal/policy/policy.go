// Package policy holds the platform hooks consulted around every clock
// rate and state change. A hook runs twice per request: once before the
// hardware is touched, where it may veto or rewrite the request, and once
// after the outcome is known, where it commits its own bookkeeping.
// Nothing is committed in the first phase.
package policy

import (
	"github.com/danmuck/clockctl/internal/clock"
)

// Phase identifies which side of the hardware operation a hook runs on.
type Phase int

const (
	// PhasePreDispatch runs before the driver is called.
	PhasePreDispatch Phase = iota
	// PhasePostCompletion runs after the operation finished successfully.
	PhasePostCompletion
)

func (p Phase) String() string {
	switch p {
	case PhasePreDispatch:
		return "pre-dispatch"
	case PhasePostCompletion:
		return "post-completion"
	default:
		return "unknown"
	}
}

// Decision tells the protocol layer whether to call the driver.
type Decision int

const (
	// Execute dispatches the request to the driver.
	Execute Decision = iota
	// Skip answers the agent successfully without touching hardware.
	// The caller still runs the post-completion phase so the policy can
	// account for the request it absorbed.
	Skip
)

// RateParams carries a rate change request through a hook. Clock is the
// index the requesting agent used on the wire, not a physical device id.
type RateParams struct {
	Agent uint32
	Clock uint32
	Rate  uint64
	Round clock.RoundMode
}

// StateParams carries a state change request through a hook. Clock is the
// agent-visible index, as for RateParams.
type StateParams struct {
	Agent uint32
	Clock uint32
	State clock.State
}

// Policy is consulted around rate and state changes. Hooks return the
// possibly rewritten parameters the caller must use from then on. An error
// aborts the request; the agent sees a generic failure.
type Policy interface {
	RateSet(phase Phase, p RateParams) (Decision, RateParams, error)
	StateSet(phase Phase, p StateParams) (Decision, StateParams, error)
}

// Passthrough approves everything and tracks nothing. Platforms with a
// single agent per clock need no more than this.
type Passthrough struct{}

func (Passthrough) RateSet(_ Phase, p RateParams) (Decision, RateParams, error) {
	return Execute, p, nil
}

func (Passthrough) StateSet(_ Phase, p StateParams) (Decision, StateParams, error) {
	return Execute, p, nil
}

package engine

import (
	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/observability"
	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/scmi"
)

// runCorrelator consumes driver completions until the channel closes.
// There is exactly one correlator per engine, so completion handling for
// a device never races with itself.
func (e *Engine) runCorrelator() {
	defer close(e.done)
	for c := range e.driver.Completions() {
		e.handleCompletion(c)
	}
	e.log.Info().Msg("completion correlator stopped")
}

// handleCompletion finishes the request waiting on the completed device:
// it answers the agent, commits policy state for successful mutations,
// and releases the claim whatever the outcome.
func (e *Engine) handleCompletion(c clock.Completion) {
	claim, ok := e.tracker.Lookup(c.Device)
	if !ok {
		e.log.Warn().
			Uint32("device", uint32(c.Device)).
			Msg("completion with no outstanding claim")
		return
	}
	observability.RecordPendingDone(claim.Kind.String(), claim.Age())

	if c.Err != nil {
		e.log.Warn().Err(c.Err).
			Uint32("device", uint32(c.Device)).
			Str("kind", claim.Kind.String()).
			Msg("hardware operation failed")
		if err := e.respondStatus(claim.Service, completionStatus(c.Err)); err != nil {
			e.log.Error().Err(err).Msg("completion respond failed")
		}
		e.tracker.Release(c.Device)
		return
	}

	var rerr error
	switch r := c.Result.(type) {
	case clock.StateResult:
		rerr = e.respondClockAttributes(claim.Service, c.Device, r.State, nil)
	case clock.RateResult:
		rerr = e.respondRate(claim.Service, r.Rate, nil)
	case clock.AckResult:
		rerr = e.respondStatus(claim.Service, setOutcomeStatus(nil))
		switch claim.Kind {
		case KindSetState:
			e.policyPostState(policy.StateParams{
				Agent: claim.Agent,
				Clock: claim.ClockIndex,
				State: claim.Target,
			})
		case KindSetRate:
			e.policyPostRate(policy.RateParams{
				Agent: claim.Agent,
				Clock: claim.ClockIndex,
				Rate:  claim.Rate,
				Round: claim.Round,
			})
		}
	default:
		e.log.Error().
			Uint32("device", uint32(c.Device)).
			Str("kind", claim.Kind.String()).
			Msg("completion carried no result")
		rerr = e.respondStatus(claim.Service, scmi.StatusGenericError)
	}
	if rerr != nil {
		e.log.Error().Err(rerr).Msg("completion respond failed")
	}
	e.tracker.Release(c.Device)
}

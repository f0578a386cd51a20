package engine

import (
	"errors"

	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/observability"
	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/registry"
	"github.com/danmuck/clockctl/internal/scmi"
	"github.com/danmuck/clockctl/internal/scmi/wire"
)

func (e *Engine) respond(svc Service, st scmi.Status, buf []byte) error {
	observability.RecordProtocolResponse(st.String())
	return svc.Respond(buf, len(buf))
}

func (e *Engine) respondStatus(svc Service, st scmi.Status) error {
	return e.respond(svc, st, wire.StatusOnly(st))
}

// respondStaged completes a request whose payload was assembled with
// WritePayload.
func (e *Engine) respondStaged(svc Service, size int) error {
	observability.RecordProtocolResponse(scmi.StatusSuccess.String())
	return svc.Respond(nil, size)
}

func (e *Engine) respondBusy(svc Service, dev clock.DeviceID) error {
	observability.RecordBusyRejection()
	e.log.Debug().Uint32("device", uint32(dev)).Msg("clock busy")
	return e.respondStatus(svc, scmi.StatusBusy)
}

// lookupStatus maps registry resolution failures: an agent that cannot be
// resolved is an invalid parameter, a clock index past the agent's table
// is out of range.
func lookupStatus(err error) scmi.Status {
	switch {
	case errors.Is(err, registry.ErrIndexOutOfRange):
		return scmi.StatusOutOfRange
	case errors.Is(err, registry.ErrUnknownAgent):
		return scmi.StatusInvalidParameters
	default:
		return scmi.StatusGenericError
	}
}

// setOutcomeStatus maps a synchronous set-rate/set-state driver result.
func setOutcomeStatus(err error) scmi.Status {
	switch {
	case err == nil:
		return scmi.StatusSuccess
	case errors.Is(err, clock.ErrOutOfRange), errors.Is(err, clock.ErrInvalidParam):
		return scmi.StatusInvalidParameters
	case errors.Is(err, clock.ErrNotSupported):
		return scmi.StatusNotSupported
	default:
		return scmi.StatusGenericError
	}
}

// completionStatus maps a failed asynchronous completion. Unlike the
// synchronous path, an invalid-parameter driver failure surfaces as a
// generic error here.
func completionStatus(err error) scmi.Status {
	switch {
	case errors.Is(err, clock.ErrNotSupported):
		return scmi.StatusNotSupported
	case errors.Is(err, clock.ErrOutOfRange):
		return scmi.StatusInvalidParameters
	default:
		return scmi.StatusGenericError
	}
}

// respondClockAttributes answers a clock attributes request from a state
// read, synchronous or completed.
func (e *Engine) respondClockAttributes(svc Service, dev clock.DeviceID, state clock.State, err error) error {
	if err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	resp := wire.ClockAttributesResponse{
		Status:     scmi.StatusSuccess,
		Attributes: wire.PackClockAttributes(state == clock.StateRunning),
		Name:       e.driver.Name(dev),
	}
	return e.respond(svc, scmi.StatusSuccess, resp.Encode())
}

// respondRate answers a rate get request from a rate read.
func (e *Engine) respondRate(svc Service, rate uint64, err error) error {
	if err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	resp := wire.NewRateGetResponse(rate)
	return e.respond(svc, scmi.StatusSuccess, resp.Encode())
}

func (e *Engine) policyPostRate(p policy.RateParams) {
	if _, _, err := e.policy.RateSet(policy.PhasePostCompletion, p); err != nil {
		e.log.Error().Err(err).
			Uint32("agent", p.Agent).
			Uint32("clock", p.Clock).
			Msg("rate policy commit failed")
	}
}

func (e *Engine) policyPostState(p policy.StateParams) {
	if _, _, err := e.policy.StateSet(policy.PhasePostCompletion, p); err != nil {
		e.log.Error().Err(err).
			Uint32("agent", p.Agent).
			Uint32("clock", p.Clock).
			Msg("state policy commit failed")
	}
}

func (e *Engine) protocolVersion(svc Service, _ []byte) error {
	resp := wire.VersionResponse{Status: scmi.StatusSuccess, Version: scmi.Version}
	return e.respond(svc, scmi.StatusSuccess, resp.Encode())
}

func (e *Engine) protocolAttributes(svc Service, _ []byte) error {
	_, agent, err := e.agentFor(svc)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}
	resp := wire.AttributesResponse{
		Status:     scmi.StatusSuccess,
		Attributes: wire.PackProtocolAttributes(uint32(e.maxPending), uint32(agent.DeviceCount())),
	}
	return e.respond(svc, scmi.StatusSuccess, resp.Encode())
}

func (e *Engine) protocolMessageAttributes(svc Service, payload []byte) error {
	req, err := wire.DecodeMessageAttributesRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	if !implemented(scmi.MessageID(req.MessageID)) {
		return e.respondStatus(svc, scmi.StatusNotFound)
	}
	// No per-message attribute bits are defined.
	resp := wire.AttributesResponse{Status: scmi.StatusSuccess}
	return e.respond(svc, scmi.StatusSuccess, resp.Encode())
}

func (e *Engine) clockAttributes(svc Service, payload []byte) error {
	req, err := wire.DecodeClockAttributesRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	agentID, dev, err := e.deviceFor(svc, req.ClockID)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}

	claim := &Claim{Service: svc, Agent: agentID, Kind: KindGetState, ClockIndex: req.ClockID}
	if err := e.tracker.Claim(dev.Physical, claim); err != nil {
		return e.respondBusy(svc, dev.Physical)
	}
	state, err := e.driver.State(dev.Physical)
	if errors.Is(err, clock.ErrPending) {
		observability.RecordPendingStart()
		return nil
	}
	rerr := e.respondClockAttributes(svc, dev.Physical, state, err)
	e.tracker.Release(dev.Physical)
	return rerr
}

func (e *Engine) rateGet(svc Service, payload []byte) error {
	req, err := wire.DecodeRateGetRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	agentID, dev, err := e.deviceFor(svc, req.ClockID)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}

	claim := &Claim{Service: svc, Agent: agentID, Kind: KindGetRate, ClockIndex: req.ClockID}
	if err := e.tracker.Claim(dev.Physical, claim); err != nil {
		return e.respondBusy(svc, dev.Physical)
	}
	rate, err := e.driver.Rate(dev.Physical)
	if errors.Is(err, clock.ErrPending) {
		observability.RecordPendingStart()
		return nil
	}
	rerr := e.respondRate(svc, rate, err)
	e.tracker.Release(dev.Physical)
	return rerr
}

func (e *Engine) rateSet(svc Service, payload []byte) error {
	req, err := wire.DecodeRateSetRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	if req.UnknownFlags() {
		return e.respondStatus(svc, scmi.StatusInvalidParameters)
	}
	agentID, dev, err := e.deviceFor(svc, req.ClockID)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}
	if req.Async() {
		// Asynchronous rate changes are not implemented.
		return e.respondStatus(svc, scmi.StatusNotSupported)
	}

	round := clock.RoundDown
	if req.RoundAuto() {
		round = clock.RoundNearest
	} else if req.RoundUp() {
		round = clock.RoundUp
	}

	params := policy.RateParams{Agent: agentID, Clock: req.ClockID, Rate: req.Rate(), Round: round}
	dec, params, err := e.policy.RateSet(policy.PhasePreDispatch, params)
	if err != nil {
		e.log.Warn().Err(err).
			Uint32("agent", agentID).
			Uint32("clock", req.ClockID).
			Msg("rate policy rejected request")
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	if dec == policy.Skip {
		rerr := e.respondStatus(svc, scmi.StatusSuccess)
		e.policyPostRate(params)
		return rerr
	}

	claim := &Claim{
		Service:    svc,
		Agent:      agentID,
		Kind:       KindSetRate,
		ClockIndex: req.ClockID,
		Rate:       params.Rate,
		Round:      params.Round,
	}
	if err := e.tracker.Claim(dev.Physical, claim); err != nil {
		return e.respondBusy(svc, dev.Physical)
	}
	err = e.driver.SetRate(dev.Physical, params.Rate, params.Round)
	if errors.Is(err, clock.ErrPending) {
		observability.RecordPendingStart()
		return nil
	}
	rerr := e.respondStatus(svc, setOutcomeStatus(err))
	if err == nil {
		e.policyPostRate(params)
	}
	e.tracker.Release(dev.Physical)
	return rerr
}

func (e *Engine) configSet(svc Service, payload []byte) error {
	req, err := wire.DecodeConfigSetRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	agentID, dev, err := e.deviceFor(svc, req.ClockID)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}
	if req.UnknownAttributes() {
		return e.respondStatus(svc, scmi.StatusInvalidParameters)
	}

	target := clock.StateStopped
	if req.Enable() {
		target = clock.StateRunning
	}
	params := policy.StateParams{Agent: agentID, Clock: req.ClockID, State: target}
	dec, params, err := e.policy.StateSet(policy.PhasePreDispatch, params)
	if err != nil {
		e.log.Warn().Err(err).
			Uint32("agent", agentID).
			Uint32("clock", req.ClockID).
			Msg("state policy rejected request")
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	if dec == policy.Skip {
		// The policy absorbed the request. It still gets its commit
		// phase so absorbed disables drop their reference.
		rerr := e.respondStatus(svc, scmi.StatusSuccess)
		e.policyPostState(params)
		return rerr
	}

	claim := &Claim{
		Service:    svc,
		Agent:      agentID,
		Kind:       KindSetState,
		ClockIndex: req.ClockID,
		Target:     params.State,
	}
	if err := e.tracker.Claim(dev.Physical, claim); err != nil {
		return e.respondBusy(svc, dev.Physical)
	}
	err = e.driver.SetState(dev.Physical, params.State)
	if errors.Is(err, clock.ErrPending) {
		observability.RecordPendingStart()
		return nil
	}
	rerr := e.respondStatus(svc, setOutcomeStatus(err))
	if err == nil {
		e.policyPostState(params)
	}
	e.tracker.Release(dev.Physical)
	return rerr
}

func (e *Engine) describeRates(svc Service, payload []byte) error {
	req, err := wire.DecodeDescribeRatesRequest(payload)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}
	_, dev, err := e.deviceFor(svc, req.ClockID)
	if err != nil {
		return e.respondStatus(svc, lookupStatus(err))
	}
	maxPayload, err := svc.MaxPayloadSize()
	if err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	info, err := e.driver.Info(dev.Physical)
	if err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	if info.RateType == clock.RateTypeDiscrete {
		return e.describeDiscrete(svc, dev.Physical, req.RateIndex, uint32(maxPayload), info)
	}
	return e.describeLinear(svc, uint32(maxPayload), info)
}

// describeDiscrete pages through the clock's rate list. The header is
// staged last, after every entry made it into the payload area.
func (e *Engine) describeDiscrete(svc Service, dev clock.DeviceID, index, maxPayload uint32, info clock.Info) error {
	if index >= info.RateCount {
		return e.respondStatus(svc, scmi.StatusOutOfRange)
	}
	perPayload := wire.RatesPerPayload(maxPayload)
	if perPayload == 0 {
		e.log.Error().
			Uint32("max_payload", maxPayload).
			Msg("transport payload too small for one rate entry")
		return e.respondStatus(svc, scmi.StatusGenericError)
	}

	count := info.RateCount - index
	if count > perPayload {
		count = perPayload
	}
	remaining := (info.RateCount - index) - count

	offset := wire.DescribeRatesHeaderLen
	for i := uint32(0); i < count; i++ {
		rate, err := e.driver.RateFromIndex(dev, index+i)
		if err != nil {
			return e.respondStatus(svc, scmi.StatusGenericError)
		}
		if err := svc.WritePayload(offset, wire.NewRateEntry(rate).Encode()); err != nil {
			return e.respondStatus(svc, scmi.StatusGenericError)
		}
		offset += wire.RateEntryLen
	}
	header := wire.DescribeRatesHeader{
		Status:        scmi.StatusSuccess,
		NumRatesFlags: wire.PackNumRates(count, wire.RateFormatList, remaining),
	}
	if err := svc.WritePayload(0, header.Encode()); err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	return e.respondStaged(svc, offset)
}

// describeLinear reports the (min, max, step) triplet as one logical rate.
// Capacity is checked before anything is staged.
func (e *Engine) describeLinear(svc Service, maxPayload uint32, info clock.Info) error {
	if wire.RatesPerPayload(maxPayload) < 3 {
		e.log.Error().
			Uint32("max_payload", maxPayload).
			Msg("transport payload too small for a rate range triplet")
		return e.respondStatus(svc, scmi.StatusGenericError)
	}

	offset := wire.DescribeRatesHeaderLen
	for _, r := range []uint64{info.Min, info.Max, info.Step} {
		if err := svc.WritePayload(offset, wire.NewRateEntry(r).Encode()); err != nil {
			return e.respondStatus(svc, scmi.StatusGenericError)
		}
		offset += wire.RateEntryLen
	}
	header := wire.DescribeRatesHeader{
		Status:        scmi.StatusSuccess,
		NumRatesFlags: wire.PackNumRates(1, wire.RateFormatRange, 0),
	}
	if err := svc.WritePayload(0, header.Encode()); err != nil {
		return e.respondStatus(svc, scmi.StatusGenericError)
	}
	return e.respondStaged(svc, offset)
}

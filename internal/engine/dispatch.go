package engine

import (
	"github.com/danmuck/clockctl/internal/observability"
	"github.com/danmuck/clockctl/internal/scmi"
	"github.com/danmuck/clockctl/internal/scmi/wire"
)

type handlerFunc func(e *Engine, svc Service, payload []byte) error

// dispatchEntry binds the exact request payload size an opcode takes to
// its handler, so the two can never drift apart.
type dispatchEntry struct {
	size    int
	handler handlerFunc
}

var dispatchTable = [scmi.MessageIDCount]dispatchEntry{
	scmi.MsgProtocolVersion:           {size: wire.ProtocolVersionRequestLen, handler: (*Engine).protocolVersion},
	scmi.MsgProtocolAttributes:        {size: wire.ProtocolAttributesRequestLen, handler: (*Engine).protocolAttributes},
	scmi.MsgProtocolMessageAttributes: {size: wire.MessageAttributesRequestLen, handler: (*Engine).protocolMessageAttributes},
	scmi.MsgClockAttributes:           {size: wire.ClockAttributesRequestLen, handler: (*Engine).clockAttributes},
	scmi.MsgClockDescribeRates:        {size: wire.DescribeRatesRequestLen, handler: (*Engine).describeRates},
	scmi.MsgClockRateSet:              {size: wire.RateSetRequestLen, handler: (*Engine).rateSet},
	scmi.MsgClockRateGet:              {size: wire.RateGetRequestLen, handler: (*Engine).rateGet},
	scmi.MsgClockConfigSet:            {size: wire.ConfigSetRequestLen, handler: (*Engine).configSet},
}

// implemented reports whether an opcode has a handler, for the message
// attributes query.
func implemented(id scmi.MessageID) bool {
	return id < scmi.MessageIDCount && dispatchTable[id].handler != nil
}

// ProcessMessage is the protocol entry point. It validates the opcode and
// payload length, consults the permission guard, and routes to the
// handler. Failure branches answer with a bare status; on success the
// handler owns the response, immediately or through a completion.
func (e *Engine) ProcessMessage(svc Service, id scmi.MessageID, payload []byte) error {
	if !implemented(id) {
		e.log.Warn().Uint32("message_id", uint32(id)).Msg("unknown message id")
		return e.respondStatus(svc, scmi.StatusNotFound)
	}
	observability.RecordProtocolRequest(id.String())

	entry := dispatchTable[id]
	if len(payload) != entry.size {
		e.log.Warn().
			Str("message", id.String()).
			Int("got", len(payload)).
			Int("want", entry.size).
			Msg("payload size mismatch")
		return e.respondStatus(svc, scmi.StatusProtocolError)
	}

	if e.guard != nil && !e.permitted(svc, id, payload) {
		return e.respondStatus(svc, scmi.StatusDenied)
	}

	return entry.handler(e, svc, payload)
}

// permitted applies the guard. Ids below the protocol-scoped limit are
// checked at protocol granularity; the rest name a clock in their payload,
// which for rate-set sits in the second word and in the first otherwise.
func (e *Engine) permitted(svc Service, id scmi.MessageID, payload []byte) bool {
	agent, err := svc.AgentID()
	if err != nil {
		return false
	}
	if id < scmi.ProtocolScopedIDLimit {
		return e.guard.AllowProtocol(agent)
	}
	return e.guard.AllowResource(agent, id, clockIDForGuard(id, payload))
}

// clockIDForGuard pulls the clock id out of a validated payload without a
// full decode; only its position varies by opcode.
func clockIDForGuard(id scmi.MessageID, payload []byte) uint32 {
	if id == scmi.MsgClockRateSet {
		return wire.Word(payload, 1)
	}
	return wire.Word(payload, 0)
}

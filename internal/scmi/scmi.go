package scmi

// ProtocolID is the clock management protocol identifier.
const ProtocolID uint8 = 0x14

// Version is the protocol version reported to agents: major 2, minor 0.
const Version uint32 = 0x20000

// MessageID identifies one protocol operation.
type MessageID uint32

const (
	MsgProtocolVersion           MessageID = 0x0
	MsgProtocolAttributes        MessageID = 0x1
	MsgProtocolMessageAttributes MessageID = 0x2
	MsgClockAttributes           MessageID = 0x3
	MsgClockDescribeRates        MessageID = 0x4
	MsgClockRateSet              MessageID = 0x5
	MsgClockRateGet              MessageID = 0x6
	MsgClockConfigSet            MessageID = 0x7

	// MessageIDCount bounds the dispatch table.
	MessageIDCount = 0x8
)

// ProtocolScopedIDLimit splits permission checks: message ids below it are
// protocol-scoped, the rest are checked per resource.
const ProtocolScopedIDLimit MessageID = 0x3

func (m MessageID) String() string {
	switch m {
	case MsgProtocolVersion:
		return "protocol_version"
	case MsgProtocolAttributes:
		return "protocol_attributes"
	case MsgProtocolMessageAttributes:
		return "protocol_message_attributes"
	case MsgClockAttributes:
		return "clock_attributes"
	case MsgClockDescribeRates:
		return "clock_describe_rates"
	case MsgClockRateSet:
		return "clock_rate_set"
	case MsgClockRateGet:
		return "clock_rate_get"
	case MsgClockConfigSet:
		return "clock_config_set"
	}
	return "unknown"
}

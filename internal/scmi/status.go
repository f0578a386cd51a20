package scmi

// Status is the agent-visible result of a request. Non-success values are
// negative on the wire, matching the platform management convention.
type Status int32

const (
	StatusSuccess           Status = 0
	StatusNotSupported      Status = -1
	StatusInvalidParameters Status = -2
	StatusDenied            Status = -3
	StatusNotFound          Status = -4
	StatusOutOfRange        Status = -5
	StatusBusy              Status = -6
	StatusCommsError        Status = -7
	StatusGenericError      Status = -8
	StatusHardwareError     Status = -9
	StatusProtocolError     Status = -10
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotSupported:
		return "not_supported"
	case StatusInvalidParameters:
		return "invalid_parameters"
	case StatusDenied:
		return "denied"
	case StatusNotFound:
		return "not_found"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusBusy:
		return "busy"
	case StatusCommsError:
		return "comms_error"
	case StatusGenericError:
		return "generic_error"
	case StatusHardwareError:
		return "hardware_error"
	case StatusProtocolError:
		return "protocol_error"
	}
	return "unknown"
}

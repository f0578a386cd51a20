// Package clock defines the hardware-facing clock abstraction: device
// identity, states, rate shapes, and the driver boundary the protocol
// engine submits to.
package clock

import "errors"

// DeviceID is the process-wide physical clock identifier: a dense index
// into the platform's clock device table. It is distinct from any agent's
// local visible index for the same device.
type DeviceID uint32

// State is the running state of a clock device.
type State uint8

const (
	StateStopped State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	}
	return "invalid"
}

// RoundMode selects how a rate-set request resolves between supported
// rates.
type RoundMode uint8

const (
	RoundDown RoundMode = iota
	RoundUp
	RoundNearest
)

func (m RoundMode) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundNearest:
		return "nearest"
	}
	return "invalid"
}

// RateType describes how a device expresses its supported rates.
type RateType uint8

const (
	// RateTypeDiscrete devices expose an indexed list of rates.
	RateTypeDiscrete RateType = iota
	// RateTypeLinear devices expose a (min, max, step) range.
	RateTypeLinear
)

// Info is the static rate shape of one device. RateCount is meaningful for
// discrete devices; Min, Max and Step for linear ones. Rates are in hertz.
type Info struct {
	RateType  RateType
	RateCount uint32
	Min       uint64
	Max       uint64
	Step      uint64
}

// Driver failure sentinels. ErrPending is not a failure: it reports that
// the operation continues asynchronously and a Completion will follow.
var (
	ErrPending       = errors.New("clock: operation pending")
	ErrNotSupported  = errors.New("clock: operation not supported")
	ErrOutOfRange    = errors.New("clock: value out of range")
	ErrInvalidParam  = errors.New("clock: invalid parameter")
	ErrUnknownDevice = errors.New("clock: unknown device")
)

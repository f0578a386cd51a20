package clock

// Result is the typed payload of an asynchronous completion. Exactly one
// concrete kind exists per request family: a state read, a rate read, or a
// bare acknowledgement for the set operations.
type Result interface {
	isResult()
}

// StateResult completes a state read.
type StateResult struct {
	State State
}

// RateResult completes a rate read. Rate is in hertz.
type RateResult struct {
	Rate uint64
}

// AckResult completes a set-rate or set-state request.
type AckResult struct{}

func (StateResult) isResult() {}
func (RateResult) isResult()  {}
func (AckResult) isResult()   {}

// Completion reports the asynchronous end of an operation that earlier
// returned ErrPending. Err is nil on success and Result carries the typed
// payload; on failure Err holds one of the driver sentinels and Result is
// nil.
type Completion struct {
	Device DeviceID
	Result Result
	Err    error
}

// Driver is the clock hardware abstraction. Operations do not block: they
// either finish immediately or return ErrPending, in which case exactly one
// Completion for the device is later delivered on Completions. Info,
// RateFromIndex and Name are always immediate.
//
// The engine never issues a second operation against a device while one is
// outstanding; drivers may rely on that.
type Driver interface {
	State(dev DeviceID) (State, error)
	Rate(dev DeviceID) (uint64, error)
	SetRate(dev DeviceID, rate uint64, mode RoundMode) error
	SetState(dev DeviceID, state State) error
	Info(dev DeviceID) (Info, error)
	RateFromIndex(dev DeviceID, index uint32) (uint64, error)
	Name(dev DeviceID) string
	Completions() <-chan Completion
}

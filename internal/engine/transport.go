package engine

import (
	"github.com/danmuck/clockctl/internal/scmi"
)

// Service is one transport channel carrying a single agent's requests.
// The transport owns a staging area per service for responses assembled
// piecewise; Respond with a nil payload sends the staged bytes.
//
// A service handles one request at a time, but responses to asynchronous
// operations may arrive after later requests on other clocks have been
// answered.
type Service interface {
	// AgentID resolves the agent behind this channel.
	AgentID() (uint32, error)
	// MaxPayloadSize reports the transport's response payload capacity.
	MaxPayloadSize() (int, error)
	// WritePayload stages response bytes at the given offset.
	WritePayload(offset int, b []byte) error
	// Respond completes the request. A nil payload sends the first size
	// staged bytes, otherwise the first size bytes of payload.
	Respond(payload []byte, size int) error
}

// PermissionGuard is the optional gate consulted before a handler runs.
// Message ids below the protocol-scoped limit are checked against the
// protocol as a whole, the rest against the specific clock named in the
// request.
type PermissionGuard interface {
	AllowProtocol(agent uint32) bool
	AllowResource(agent uint32, id scmi.MessageID, clockIdx uint32) bool
}

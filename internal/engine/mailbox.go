package engine

import (
	"context"
	"fmt"
	"sync"
)

// mailboxDepth bounds queued responses. Responses outlive ProcessMessage
// only for pending operations, and those are capped at one per device, so
// the queue never fills on a sane topology.
const mailboxDepth = 16

// Mailbox is an in-process transport service: a fixed staging area and a
// response queue. The admin surface and tests drive the engine through it.
type Mailbox struct {
	agent uint32
	max   int

	mu     sync.Mutex
	staged []byte

	resp chan []byte
}

func NewMailbox(agent uint32, maxPayload int) *Mailbox {
	return &Mailbox{
		agent:  agent,
		max:    maxPayload,
		staged: make([]byte, maxPayload),
		resp:   make(chan []byte, mailboxDepth),
	}
}

func (m *Mailbox) AgentID() (uint32, error) { return m.agent, nil }

func (m *Mailbox) MaxPayloadSize() (int, error) { return m.max, nil }

func (m *Mailbox) WritePayload(offset int, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+len(b) > m.max {
		return fmt.Errorf("mailbox: write of %d bytes at %d exceeds payload area of %d", len(b), offset, m.max)
	}
	copy(m.staged[offset:], b)
	return nil
}

func (m *Mailbox) Respond(payload []byte, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < 0 || size > m.max {
		return fmt.Errorf("mailbox: respond size %d out of bounds", size)
	}
	if payload != nil && size > len(payload) {
		return fmt.Errorf("mailbox: respond size %d exceeds payload %d", size, len(payload))
	}
	src := payload
	if src == nil {
		src = m.staged
	}
	out := make([]byte, size)
	copy(out, src[:size])
	select {
	case m.resp <- out:
		return nil
	default:
		return fmt.Errorf("mailbox: response queue full")
	}
}

// Take waits for the next response.
func (m *Mailbox) Take(ctx context.Context) ([]byte, error) {
	select {
	case b := <-m.resp:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryTake returns a response if one is already queued.
func (m *Mailbox) TryTake() ([]byte, bool) {
	select {
	case b := <-m.resp:
		return b, true
	default:
		return nil, false
	}
}

var _ Service = (*Mailbox)(nil)

package reactive

import (
	"errors"
	"fmt"
)

// ProtocolError is the panic value raised when the pull protocol is
// violated. It signals a programming error in pipeline wiring, never a
// condition callers should handle.
type ProtocolError struct {
	Op       string
	Receiver string
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pull protocol violation in %s for receiver %s: %s", e.Op, e.Receiver, e.Message)
}

// IsProtocolError reports whether err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func violation(op string, r any, msg string) {
	panic(&ProtocolError{Op: op, Receiver: fmt.Sprint(r), Message: msg})
}

// Registry tracks which receivers of a producer are waiting for output.
type Registry[R comparable] interface {
	// AddReceiver registers r and reports whether it was already present.
	AddReceiver(r R) bool

	// RecordPull marks r as waiting for one item.
	RecordPull(r R)

	// SetNotPulling clears r's pull after delivery.
	SetNotPulling(r R)

	// SetNotPullingAll clears every pull.
	SetNotPullingAll()

	// Pulling returns the receivers currently waiting.
	Pulling() []R

	// AnyPulling reports whether any receiver is waiting.
	AnyPulling() bool
}

// Single is a registry with exactly one receiver.
type Single[R comparable] struct {
	receiver R
	present  bool
	pulling  bool
}

// NewSingle creates an empty single-receiver registry.
func NewSingle[R comparable]() *Single[R] {
	return &Single[R]{}
}

// AddReceiver implements Registry. Registering a second, different
// receiver violates the protocol.
func (s *Single[R]) AddReceiver(r R) bool {
	if s.present {
		if s.receiver != r {
			violation("AddReceiver", r, "single registry already has a receiver")
		}
		return true
	}
	s.receiver = r
	s.present = true
	return false
}

// RecordPull implements Registry. Pulling from an unregistered receiver
// or pulling twice before delivery violates the protocol.
func (s *Single[R]) RecordPull(r R) {
	if !s.present || s.receiver != r {
		violation("RecordPull", r, "receiver is not registered")
	}
	if s.pulling {
		violation("RecordPull", r, "receiver already has an outstanding pull")
	}
	s.pulling = true
}

// SetNotPulling implements Registry.
func (s *Single[R]) SetNotPulling(r R) {
	if !s.present || s.receiver != r {
		violation("SetNotPulling", r, "receiver is not registered")
	}
	s.pulling = false
}

// SetNotPullingAll implements Registry.
func (s *Single[R]) SetNotPullingAll() {
	s.pulling = false
}

// Pulling implements Registry.
func (s *Single[R]) Pulling() []R {
	if !s.pulling {
		return nil
	}
	return []R{s.receiver}
}

// AnyPulling implements Registry.
func (s *Single[R]) AnyPulling() bool {
	return s.pulling
}

// Multi is a registry with any number of receivers.
type Multi[R comparable] struct {
	order    []R
	known    map[R]bool
	pullings map[R]bool
}

// NewMulti creates an empty multi-receiver registry.
func NewMulti[R comparable]() *Multi[R] {
	return &Multi[R]{
		known:    make(map[R]bool),
		pullings: make(map[R]bool),
	}
}

// AddReceiver implements Registry.
func (m *Multi[R]) AddReceiver(r R) bool {
	if m.known[r] {
		return true
	}
	m.known[r] = true
	m.order = append(m.order, r)
	return false
}

// RecordPull implements Registry. A repeated pull is a no-op; a pull from
// an unknown receiver violates the protocol.
func (m *Multi[R]) RecordPull(r R) {
	if !m.known[r] {
		violation("RecordPull", r, "receiver is not registered")
	}
	m.pullings[r] = true
}

// SetNotPulling implements Registry.
func (m *Multi[R]) SetNotPulling(r R) {
	delete(m.pullings, r)
}

// SetNotPullingAll implements Registry.
func (m *Multi[R]) SetNotPullingAll() {
	clear(m.pullings)
}

// Pulling implements Registry. Receivers are returned in registration
// order.
func (m *Multi[R]) Pulling() []R {
	var out []R
	for _, r := range m.order {
		if m.pullings[r] {
			out = append(out, r)
		}
	}
	return out
}

// AnyPulling implements Registry.
func (m *Multi[R]) AnyPulling() bool {
	return len(m.pullings) > 0
}

// Receivers returns every registered receiver in registration order.
func (m *Multi[R]) Receivers() []R {
	return append([]R(nil), m.order...)
}

var (
	_ Registry[int] = (*Single[int])(nil)
	_ Registry[int] = (*Multi[int])(nil)
)

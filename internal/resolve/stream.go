package resolve

import (
	"context"
	"iter"
	"sync"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/reactive"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// AnswerStream is a pull-based view of a resolution with exactly one
// consumer. Each Next computes at most one answer.
//
// A consumer may have one pull outstanding: calling Next while another
// Next is still running violates the pull protocol and panics with a
// *reactive.ProtocolError. Close may be called from any goroutine; it
// waits for a running Next to return.
type AnswerStream struct {
	mu       sync.Mutex // guards registry
	registry *reactive.Single[*AnswerStream]

	call sync.Mutex // held while next or stop runs
	next func() (answer.Answer, error, bool)
	stop func()
	done bool
}

// Stream starts a pull-based resolution of q.
func (r *Resolver) Stream(ctx context.Context, q typeql.Query, sub ir.ConceptMap) *AnswerStream {
	next, stop := iter.Pull2(r.Resolve(ctx, q, sub))
	s := &AnswerStream{
		registry: reactive.NewSingle[*AnswerStream](),
		next:     next,
		stop:     stop,
	}
	s.registry.AddReceiver(s)
	return s
}

func (s *AnswerStream) recordPull() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.RecordPull(s)
}

func (s *AnswerStream) setNotPulling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.SetNotPulling(s)
}

// Pulling reports whether a Next call is in progress.
func (s *AnswerStream) Pulling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.AnyPulling()
}

// Next returns the next answer. It returns false once the resolution is
// exhausted or closed.
func (s *AnswerStream) Next() (answer.Answer, bool, error) {
	s.recordPull()
	defer s.setNotPulling()

	s.call.Lock()
	defer s.call.Unlock()
	if s.done {
		return answer.Answer{}, false, nil
	}
	a, err, ok := s.next()
	if !ok {
		s.done = true
		return answer.Answer{}, false, nil
	}
	if err != nil {
		s.done = true
		s.stop()
		return answer.Answer{}, false, err
	}
	return a, true, nil
}

// Close stops the resolution. Answers not yet pulled are never computed.
func (s *AnswerStream) Close() {
	s.call.Lock()
	defer s.call.Unlock()
	s.done = true
	s.stop()
}

// Package modemsim is a scripted stand-in for the radio, SIM and network
// layers. It drives the CLI and the scenario harness without hardware.
package modemsim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/phonebridge/internal/clock"
	"github.com/roach88/phonebridge/internal/engine"
	"github.com/roach88/phonebridge/internal/radio"
)

// Sim implements engine.Modem from a Script.
//
// Immediate replies complete synchronously inside Issue; delayed replies
// complete from a clock callback; hung replies wait for Release.
type Sim struct {
	clock clock.Clock

	mu      sync.Mutex
	replies map[radio.Opcode][]reply
	cursor  map[radio.Opcode]int
	issued  []engine.Request
	hung    []held
}

type held struct {
	req   engine.Request
	token engine.CompletionToken
}

var _ engine.Modem = (*Sim)(nil)

// Option configures a Sim.
type Option func(*Sim)

// WithClock sets the clock used for delayed replies.
func WithClock(c clock.Clock) Option {
	return func(s *Sim) { s.clock = c }
}

// New creates a simulator. A nil script answers everything with
// REQUEST_NOT_SUPPORTED.
func New(script *Script, opts ...Option) (*Sim, error) {
	s := &Sim{
		clock:   clock.Real(),
		replies: make(map[radio.Opcode][]reply),
		cursor:  make(map[radio.Opcode]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if script != nil {
		replies, err := script.compile()
		if err != nil {
			return nil, err
		}
		s.replies = replies
	}
	return s, nil
}

// Issue implements engine.Modem.
func (s *Sim) Issue(req engine.Request, token engine.CompletionToken) {
	s.mu.Lock()
	s.issued = append(s.issued, req)
	r := s.nextLocked(req.Opcode)
	if r.hang {
		s.hung = append(s.hung, held{req: req, token: token})
	}
	s.mu.Unlock()

	slog.Debug("modem issue",
		"request_id", req.ID,
		"opcode", req.Opcode.String(),
		"instance", string(req.Instance),
		"hang", r.hang,
		"delay", r.delay,
	)

	switch {
	case r.hang:
	case r.delay > 0:
		s.clock.AfterFunc(r.delay, func() { deliver(token, r) })
	default:
		deliver(token, r)
	}
}

func (s *Sim) nextLocked(op radio.Opcode) reply {
	list, ok := s.replies[op]
	if !ok {
		return reply{outcome: radio.Fail(radio.ErrRequestNotSupported, "not scripted")}
	}
	i := s.cursor[op]
	if i < len(list)-1 {
		s.cursor[op] = i + 1
	}
	return list[i]
}

func deliver(token engine.CompletionToken, r reply) {
	token.Complete(r.outcome)
	if r.duplicate {
		token.Complete(r.outcome)
	}
}

// Issued returns every request issued so far, in order.
func (s *Sim) Issued() []engine.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.Request, len(s.issued))
	copy(out, s.issued)
	return out
}

// Hung returns how many requests are waiting for Release.
func (s *Sim) Hung() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hung)
}

// Release completes every hung request for op with out and returns how
// many were released.
func (s *Sim) Release(op radio.Opcode, out radio.Outcome) int {
	s.mu.Lock()
	var release []held
	keep := s.hung[:0]
	for _, h := range s.hung {
		if h.req.Opcode == op {
			release = append(release, h)
		} else {
			keep = append(keep, h)
		}
	}
	s.hung = keep
	s.mu.Unlock()

	for _, h := range release {
		h.token.Complete(out)
	}
	return len(release)
}

// ReleaseWith is Release with a scripted reply, so scenario files can
// describe the late answer in the same form as the modem script.
func (s *Sim) ReleaseWith(op radio.Opcode, r Reply) (int, error) {
	c, err := compileReply(op, r)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return s.Release(op, c.outcome), nil
}

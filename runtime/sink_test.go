package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"

	"github.com/samber/lo"
)

// recordingSink keeps everything it was given.
type recordingSink struct {
	mu     sync.Mutex
	events []event.ServerEvent
	broken bool
	closed bool
}

func (s *recordingSink) Consume(_ context.Context, e event.ServerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken || s.closed {
		return errors.ErrConnectionLost
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Break() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
}

func (s *recordingSink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) Events() []event.ServerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.ServerEvent(nil), s.events...)
}

func (s *recordingSink) OfType(eventType string) []event.ServerEvent {
	return lo.Filter(s.Events(), func(e event.ServerEvent, _ int) bool {
		return e.Type() == eventType
	})
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

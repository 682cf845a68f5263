package outbox

import "context"

// Signal wakes the relay right after a command commits instead of waiting
// for the next poll.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Flush never blocks; pending wake-ups coalesce.
func (s *Signal) Flush(context.Context) error {
	select {
	case s.ch <- struct{}{}:
	default:
	}
	return nil
}

func (s *Signal) C() <-chan struct{} {
	return s.ch
}

package orchestrator

import (
	"context"
	"sync"
)

// Sequencer re-serializes out-of-order shot results back into ascending
// index order before handing them to a sink. It is the only coordination
// primitive in the pipeline: a next-expected-index counter plus a map from
// index to the goroutine waiting to push that index, directly ported from
// the original ShotExecutionQueue (push(shot_parameters) blocks on a
// per-index event until shot_index == next_shot, then sends and wakes the
// following index's waiter).
type Sequencer struct {
	mu        sync.Mutex
	next      int
	total     int
	waiters   map[int]chan struct{}
	delivered int
}

// NewSequencer builds a Sequencer expecting indices 0..total-1.
func NewSequencer(total int) *Sequencer {
	return &Sequencer{total: total, waiters: make(map[int]chan struct{})}
}

// Push delivers result to sink once every earlier index has already been
// pushed, blocking the calling goroutine until then. It is safe to call
// concurrently from many worker goroutines, each with a distinct index.
func (s *Sequencer) Push(ctx context.Context, index int, result ShotResult, sink Sink) error {
	if err := s.waitForTurn(ctx, index); err != nil {
		return err
	}

	err := sink(ctx, result)

	s.mu.Lock()
	s.next = index + 1
	s.delivered++
	waiter, ok := s.waiters[s.next]
	if ok {
		delete(s.waiters, s.next)
	}
	s.mu.Unlock()

	if ok {
		close(waiter)
	}
	return err
}

func (s *Sequencer) waitForTurn(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.next == index {
		s.mu.Unlock()
		return nil
	}
	wake := make(chan struct{})
	s.waiters[index] = wake
	s.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

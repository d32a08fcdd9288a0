// Package orchestrator runs many shot compilations concurrently and
// re-serializes their results back into shot order before handing them to a
// downstream sink. It is the only package in tickforge that coordinates
// goroutines: the instruction algebra and expression evaluator
// (internal/instr, internal/expr) are pure and single-threaded per call,
// safe to invoke from many worker goroutines at once because they never
// mutate shared state. A shotcompiler.Compiler does carry lifecycle state,
// so a CompileFunc that shares one across workers has to serialize its calls.
//
// This mirrors the teacher's internal/concurrency WorkerPool (bounded job
// channel, context.Context cancellation) but replaces its hand-rolled
// goroutine/WaitGroup bookkeeping with golang.org/x/sync/errgroup, the
// idiomatic Go analogue of the original's anyio.create_task_group
// structured-concurrency fan-out.
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tickforge/internal/expr"
)

// DefaultPoolSize is the number of concurrent compile workers used when a
// caller does not override it, matching the original's fixed four-worker
// fan-out.
const DefaultPoolSize = 4

// ShotRequest is one unit of work: a shot's index (for re-ordering) and the
// variables it should be compiled against.
type ShotRequest struct {
	Index     int
	Variables expr.Env
}

// ShotResult is the output of compiling one shot: its per-device parameter
// maps, in the same shape shotcompiler.Compiler.CompileShot returns.
type ShotResult struct {
	Index      int
	Parameters map[string]any
}

// CompileFunc compiles one shot's variables into per-device parameters. It
// must be safe to call concurrently from multiple goroutines — the caller is
// responsible for that (e.g. by giving each worker its own
// *shotcompiler.Compiler bound to the same already-CompileSequence'd
// SequenceContext, or by guarding a single compiler with its own locking).
type CompileFunc func(ctx context.Context, req ShotRequest) (map[string]any, error)

// Sink receives compiled shot results strictly in increasing index order.
type Sink func(ctx context.Context, result ShotResult) error

// Pool runs a fixed-size fan-out of compile workers over a stream of
// ShotRequests, retrying resource errors per policy, and delivers results to
// sink in shot order via a Sequencer.
type Pool struct {
	size    int
	compile CompileFunc
	retry   RetryPolicy
}

// NewPool builds a Pool with the given worker count (DefaultPoolSize if
// size <= 0), compile function, and retry policy.
func NewPool(size int, compile CompileFunc, retry RetryPolicy) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{size: size, compile: compile, retry: retry}
}

// Run compiles every request in requests, fanning out across the pool's
// workers, and delivers results to sink in ascending index order. It
// returns the first error encountered by any worker or the sink; per
// structured-concurrency semantics, an error cancels all other in-flight
// compilations and no further results are delivered to sink — results
// already computed but not yet sunk are discarded.
func (p *Pool) Run(ctx context.Context, requests []ShotRequest, sink Sink) error {
	seq := NewSequencer(len(requests))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan ShotRequest)

	g.Go(func() error {
		defer close(jobs)
		for _, req := range requests {
			select {
			case jobs <- req:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			for req := range jobs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				params, err := p.compileWithRetry(gctx, req)
				if err != nil {
					return fmt.Errorf("orchestrator: compiling shot %d: %w", req.Index, err)
				}
				if err := seq.Push(gctx, req.Index, ShotResult{Index: req.Index, Parameters: params}, sink); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (p *Pool) compileWithRetry(ctx context.Context, req ShotRequest) (map[string]any, error) {
	return p.retry.Run(ctx, func() (map[string]any, error) {
		return p.compile(ctx, req)
	})
}

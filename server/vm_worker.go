package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/tlang/pkg/bytecode"
)

// ErrPoolStopped is returned for work submitted after Stop.
var ErrPoolStopped = errors.New("server: worker pool stopped")

// vmRequest represents a unit of work to be executed on a worker's VM.
type vmRequest struct {
	fn   func(*bytecode.VM) any
	done chan vmResult
}

// vmResult holds the return value from a VM operation.
type vmResult struct {
	value any
	err   error
}

// WorkerPool runs VM work on a fixed set of goroutines. Each goroutine
// owns one VM, so a VM is never touched by two requests at once.
type WorkerPool struct {
	requests chan vmRequest
	quit     chan struct{}
	wg       sync.WaitGroup
	size     int

	stopOnce sync.Once
}

// NewWorkerPool starts n workers (at least one), each with a VM built
// from opts.
func NewWorkerPool(n int, opts ...bytecode.Option) *WorkerPool {
	n = max(n, 1)
	p := &WorkerPool{
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
		size:     n,
	}
	p.wg.Add(n)
	for range n {
		go p.loop(bytecode.NewVM(nil, opts...))
	}
	return p
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// loop processes requests on one VM until the pool stops.
func (p *WorkerPool) loop(v *bytecode.VM) {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.done <- execute(v, req.fn)
		case <-p.quit:
			return
		}
	}
}

// execute runs a function on the VM, recovering from panics.
func execute(v *bytecode.VM, fn func(*bytecode.VM) any) vmResult {
	var result vmResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(v)
	}()
	return result
}

// Do submits fn for execution on some worker's VM and blocks until it
// completes or ctx is done. Panics in fn are returned as errors.
func (p *WorkerPool) Do(ctx context.Context, fn func(*bytecode.VM) any) (any, error) {
	req := vmRequest{
		fn:   fn,
		done: make(chan vmResult, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolStopped
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		select {
		case result := <-req.done:
			return result.value, result.err
		default:
			return nil, ErrPoolStopped
		}
	}
}

// runResult carries a VM outcome back from a worker.
type runResult struct {
	outcome bytecode.Outcome
	err     error
}

// Run executes chunk from its first instruction on a worker VM. The
// returned error is either a pool failure (context, stopped pool) or the
// program's *bytecode.RuntimeError.
func (p *WorkerPool) Run(ctx context.Context, chunk *bytecode.Chunk) (bytecode.Outcome, error) {
	res, err := p.Do(ctx, func(v *bytecode.VM) any {
		v.SetChunk(chunk)
		out, err := v.Run()
		// Drop the reference so the chunk can be collected.
		v.SetChunk(nil)
		return runResult{outcome: out, err: err}
	})
	if err != nil {
		return bytecode.Outcome{}, err
	}
	r := res.(runResult)
	return r.outcome, r.err
}

// Stop shuts down the worker goroutines and waits for them to exit.
// Requests already queued are abandoned.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

// Package pool provides a fixed group of workers that maps a function over
// batches of items with bounded parallelism.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	ErrPoolFailure = errors.New("worker pool failure")
	ErrClosed      = fmt.Errorf("%w: pool closed", ErrPoolFailure)
	ErrInvalidSize = errors.New("pool size must be at least 1")
)

// PanicError is returned by Map when the mapped function panics in a worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error { return ErrPoolFailure }

type job[T, R any] struct {
	ctx  context.Context
	item T
	out  chan<- result[R]
}

type result[R any] struct {
	value R
	err   error
}

// Pool runs fn on at most size items at a time. Workers are started once
// by New and reused by every Map call until Close.
type Pool[T, R any] struct {
	size int
	fn   func(context.Context, T) R

	jobs      chan job[T, R]
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New[T, R any](size int, fn func(context.Context, T) R) (*Pool[T, R], error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	p := &Pool[T, R]{
		size: size,
		fn:   fn,
		jobs: make(chan job[T, R]),
		quit: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	return p, nil
}

func (p *Pool[T, R]) Size() int { return p.size }

func (p *Pool[T, R]) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			j.out <- p.run(j)
		}
	}
}

func (p *Pool[T, R]) run(j job[T, R]) (res result[R]) {
	defer func() {
		if v := recover(); v != nil {
			res.err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	res.value = p.fn(j.ctx, j.item)
	return res
}

func (p *Pool[T, R]) closed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// Map applies fn to every item and blocks until all results are in.
// Results come back in completion order.
//
// If ctx is cancelled, Map stops submitting, abandons in-flight calls and
// returns the results produced so far together with ctx.Err(). If a worker
// fails, Map stops submitting and returns an error wrapping ErrPoolFailure.
func (p *Pool[T, R]) Map(ctx context.Context, items []T) ([]R, error) {
	if p.closed() {
		return nil, ErrClosed
	}

	// Buffered so abandoned workers never block on send.
	out := make(chan result[R], len(items))
	results := make([]R, 0, len(items))
	submitted, received := 0, 0

	var failure error
	collect := func(r result[R]) {
		received++
		if r.err != nil {
			if failure == nil {
				failure = r.err
			}
			return
		}
		results = append(results, r.value)
	}

	for submitted < len(items) && failure == nil && ctx.Err() == nil {
		select {
		case p.jobs <- job[T, R]{ctx: ctx, item: items[submitted], out: out}:
			submitted++
		case r := <-out:
			collect(r)
		case <-ctx.Done():
		case <-p.quit:
			failure = ErrClosed
		}
	}

	for received < submitted && failure == nil && ctx.Err() == nil {
		select {
		case r := <-out:
			collect(r)
		case <-ctx.Done():
		case <-p.quit:
			failure = ErrClosed
		}
	}

	if failure != nil {
		return results, failure
	}
	if err := ctx.Err(); err != nil {
		// Keep whatever already finished.
		for received < submitted {
			select {
			case r := <-out:
				collect(r)
				continue
			default:
			}
			break
		}
		if failure != nil {
			return results, failure
		}
		return results, err
	}
	return results, nil
}

// Close stops the workers after their current call returns.
func (p *Pool[T, R]) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}

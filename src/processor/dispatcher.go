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

package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"credprobe/src/attempt"
	"credprobe/src/logging"
	"credprobe/src/model"
	"credprobe/src/pool"
)

type request struct {
	address  string
	user     string
	password string
}

// Dispatcher drives one batch of candidates at a time through a bounded
// pool of workers.
type Dispatcher struct {
	exec     attempt.Executor
	observer Observer
	runID    string
	pool     *pool.Pool[request, model.AttemptOutcome]

	// Held for reading while an attempt event is emitted. RunBatch takes
	// it for writing after a cancelled Map, so no event of an abandoned
	// attempt can follow its return.
	emitMu sync.RWMutex
}

func NewDispatcher(exec attempt.Executor, concurrency int, observer Observer) (*Dispatcher, error) {
	if observer == nil {
		observer = nopObserver{}
	}
	d := &Dispatcher{exec: exec, observer: observer}
	p, err := pool.New(concurrency, d.attempt)
	if err != nil {
		return nil, fmt.Errorf("start worker pool: %w", err)
	}
	d.pool = p
	return d, nil
}

// SetRunID tags subsequent attempt events.
func (d *Dispatcher) SetRunID(id string) { d.runID = id }

func (d *Dispatcher) attempt(ctx context.Context, req request) model.AttemptOutcome {
	outcome := d.exec.Attempt(ctx, req.address, req.user, req.password)

	d.emitMu.RLock()
	defer d.emitMu.RUnlock()
	if ctx.Err() != nil {
		return outcome
	}
	logging.Count(ctx, logging.MetricAttempts, 1)
	if outcome.Succeeded {
		logging.Count(ctx, logging.MetricSucceeded, 1)
	}
	d.observer.Observe(model.Event{
		Kind:    model.EventAttempt,
		RunID:   d.runID,
		Outcome: &outcome,
		Time:    time.Now(),
	})
	return outcome
}

// RunBatch tests every candidate and blocks until all of them have an
// outcome. Outcomes are in completion order.
//
// On cancellation it returns the outcomes produced so far and ctx.Err().
// A pool failure is returned as an error wrapping pool.ErrPoolFailure.
func (d *Dispatcher) RunBatch(ctx context.Context, address, user string, candidates []string) ([]model.AttemptOutcome, error) {
	ctx, span := logging.StartSpan(ctx, "batch", attribute.Int("batch.size", len(candidates)))
	defer span.End()

	reqs := make([]request, len(candidates))
	for i, password := range candidates {
		reqs[i] = request{address: address, user: user, password: password}
	}

	outcomes, err := d.pool.Map(ctx, reqs)
	logging.Count(ctx, logging.MetricBatches, 1)
	if ctx.Err() != nil {
		// Wait out events already being emitted.
		d.emitMu.Lock()
		d.emitMu.Unlock()
	}
	if err != nil {
		span.RecordError(err)
		return outcomes, err
	}
	return outcomes, nil
}

func (d *Dispatcher) Close() { d.pool.Close() }

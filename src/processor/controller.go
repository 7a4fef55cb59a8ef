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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"credprobe/src/logging"
	"credprobe/src/model"
	"credprobe/src/source"
)

// BatchRunner tests one batch of candidates. Dispatcher is the production
// implementation.
type BatchRunner interface {
	RunBatch(ctx context.Context, address, user string, candidates []string) ([]model.AttemptOutcome, error)
}

// Controller owns a run: it counts the candidates, feeds them to the
// runner one batch at a time and decides when to stop.
type Controller struct {
	Runner      BatchRunner
	Concurrency int
	KeepGoing   bool
	Observer    Observer
}

// Run tests every candidate from src against address for user.
//
// Counting or opening the source fails with an error and no state. A pool
// failure aborts the run: accumulated results are discarded and the error
// is returned alongside the aborted state. Cancelling ctx ends the run as
// interrupted with the successes gathered so far and no error.
func (c *Controller) Run(ctx context.Context, address, user string, src source.Source) (*model.RunState, error) {
	if c.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	obs := c.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	state := &model.RunState{
		RunID:     uuid.New().String(),
		Status:    model.RunCounting,
		KeepGoing: c.KeepGoing,
		StartedAt: time.Now(),
	}
	if tagger, ok := c.Runner.(interface{ SetRunID(string) }); ok {
		tagger.SetRunID(state.RunID)
	}

	ctx, span := logging.StartSpan(ctx, "run",
		attribute.String("run.id", state.RunID),
		attribute.Int("run.concurrency", c.Concurrency),
		attribute.Bool("run.keep_going", c.KeepGoing))
	defer span.End()

	total, err := src.Count()
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	state.Total = total
	emit(obs, state, model.EventStarted, nil)

	reader, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	defer reader.Close()

	logging.Log(fmt.Sprintf("Run %s started: %d candidates, %d workers", state.RunID, total, c.Concurrency), slog.LevelInfo)
	state.Status = model.RunRunning

	for {
		if ctx.Err() != nil {
			return finish(ctx, obs, state, model.RunInterrupted), nil
		}

		batch, err := reader.Next(c.Concurrency)
		if err != nil {
			state.Found = nil
			finish(ctx, obs, state, model.RunAborted)
			return state, fmt.Errorf("read candidates: %w", err)
		}
		if len(batch) == 0 {
			return finish(ctx, obs, state, model.RunExhausted), nil
		}

		outcomes, err := c.Runner.RunBatch(ctx, address, user, batch)
		if err != nil && !cancelled(ctx, err) {
			// Pool failure: drop everything found so far.
			state.Found = nil
			finish(ctx, obs, state, model.RunAborted)
			return state, fmt.Errorf("batch starting at candidate %d: %w", state.Processed+1, err)
		}

		found := merge(obs, state, outcomes)
		if err != nil {
			state.Processed += len(outcomes)
			return finish(ctx, obs, state, model.RunInterrupted), nil
		}

		state.Processed += len(batch)
		logging.UpdateSpanValue(ctx, "run.processed", float64(state.Processed))
		emit(obs, state, model.EventProgress, nil)

		if found > 0 && !c.KeepGoing {
			return finish(ctx, obs, state, model.RunFoundStop), nil
		}
	}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

// merge appends the successful outcomes to state and reports how many there were.
func merge(obs Observer, state *model.RunState, outcomes []model.AttemptOutcome) int {
	found := 0
	for _, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		found++
		state.Found = append(state.Found, o)
		emit(obs, state, model.EventFound, &o)
	}
	return found
}

func finish(ctx context.Context, obs Observer, state *model.RunState, status model.RunStatus) *model.RunState {
	now := time.Now()
	state.Status = status
	state.FinishedAt = &now
	emit(obs, state, model.EventFinished, nil)

	logging.UpdateSpanValue(ctx, "run.found", float64(len(state.Found)))
	logging.Log(fmt.Sprintf("Run %s finished (%s): %d/%d tested, %d found",
		state.RunID, status, state.Processed, state.Total, len(state.Found)), slog.LevelInfo)
	return state
}

func emit(obs Observer, state *model.RunState, kind model.EventKind, outcome *model.AttemptOutcome) {
	obs.Observe(model.Event{
		Kind:      kind,
		RunID:     state.RunID,
		Total:     state.Total,
		Processed: state.Processed,
		Outcome:   outcome,
		Status:    state.Status,
		Time:      time.Now(),
	})
}

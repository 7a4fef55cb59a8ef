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

package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "credprobe"

// Metric names
const (
	MetricAttempts          = "credprobe_attempts_total"
	MetricSucceeded         = "credprobe_attempts_succeeded"
	MetricTransportFailures = "credprobe_transport_failures"
	MetricBatches           = "credprobe_batches_total"
)

var (
	meter  = otel.Meter(instrumentationName)
	logger = otelslog.NewLogger(instrumentationName)
	tracer = otel.Tracer(instrumentationName)

	mirror atomic.Pointer[slog.Logger]

	countersMu sync.RWMutex
	counters   = map[string]metric.Int64Counter{}
)

func Log(content string, level slog.Level, attrs ...slog.Attr) {
	ctx := context.Background()
	logger.LogAttrs(ctx, level, content, attrs...)
	if m := mirror.Load(); m != nil {
		m.LogAttrs(ctx, level, content, attrs...)
	}
}

// Mirror copies every log record at or above level to w as text.
// A nil writer turns mirroring off.
func Mirror(w io.Writer, level slog.Level) {
	if w == nil {
		mirror.Store(nil)
		return
	}
	mirror.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func InitializeCounter(name, description, unit string) (metric.Int64Counter, error) {
	counter, err := meter.Int64Counter(name,
		metric.WithDescription(description),
		metric.WithUnit(unit))
	if err != nil {
		Log("Failed to create metric: "+err.Error(), slog.LevelError)
		return nil, err
	}
	countersMu.Lock()
	counters[name] = counter
	countersMu.Unlock()
	return counter, nil
}

// InitializeRunMetrics registers the counters used during a run.
func InitializeRunMetrics() error {
	for _, c := range []struct{ name, desc, unit string }{
		{MetricAttempts, "Login attempts executed", "{attempt}"},
		{MetricSucceeded, "Login attempts that authenticated", "{attempt}"},
		{MetricTransportFailures, "Attempts that failed at the transport level", "{attempt}"},
		{MetricBatches, "Batches dispatched to the worker pool", "{batch}"},
	} {
		if _, err := InitializeCounter(c.name, c.desc, c.unit); err != nil {
			return err
		}
	}
	return nil
}

// Count adds n to a registered counter. Unregistered names are ignored.
func Count(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) {
	countersMu.RLock()
	counter, ok := counters[name]
	countersMu.RUnlock()
	if !ok {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func UpdateSpanValue(ctx context.Context, key string, value float64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Float64(key, value))
}

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

// Package notify streams run events over Postgres LISTEN/NOTIFY. Nothing is
// stored: events only reach listeners connected at the time.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"credprobe/src/logging"
	"credprobe/src/model"
)

const (
	publishTimeout = 5 * time.Second
	pingInterval   = 90 * time.Second
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Publisher sends every non-attempt event as a JSON NOTIFY payload.
type Publisher struct {
	db      execer
	close   func() error
	channel string
}

func Open(ctx context.Context, dsn, channel string) (*Publisher, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse notify connection: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect notify database: %w", err)
	}
	return &Publisher{db: db, close: db.Close, channel: channel}, nil
}

func (p *Publisher) Observe(ev model.Event) {
	// Per-attempt events would flood the channel.
	if ev.Kind == model.EventAttempt {
		return
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		logging.Log("Failed to publish run event: "+err.Error(), slog.LevelWarn,
			slog.String("kind", string(ev.Kind)))
	}
}

func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("pg_notify on %s: %s (%s)", p.channel, pqErr.Message, pqErr.Code)
		}
		return fmt.Errorf("pg_notify on %s: %w", p.channel, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Watch listens on channel and hands every decoded event to handle until
// ctx is cancelled.
func Watch(ctx context.Context, dsn, channel string, handle func(model.Event)) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logging.Log(fmt.Sprintf("Listener error: %v", err), slog.LevelWarn)
		}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return fmt.Errorf("listen on %s: %w", channel, err)
	}
	logging.Log("Listening for run events on "+channel, slog.LevelInfo)

	return consume(ctx, listener.Notify, listener.Ping, handle)
}

func consume(ctx context.Context, notifications <-chan *pq.Notification, ping func() error, handle func(model.Event)) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return errors.New("listener closed")
			}
			// nil after a reconnect
			if n == nil {
				continue
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				logging.Log("Ignoring malformed event: "+err.Error(), slog.LevelWarn)
				continue
			}
			handle(ev)
		case <-ticker.C:
			go func() {
				if err := ping(); err != nil {
					logging.Log("Listener ping failed: "+err.Error(), slog.LevelWarn)
				}
			}()
		}
	}
}

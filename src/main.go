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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credprobe/src/attempt"
	"credprobe/src/config"
	"credprobe/src/logging"
	"credprobe/src/model"
	"credprobe/src/notify"
	"credprobe/src/processor"
	"credprobe/src/source"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Load environment variables from .env file, if any
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	// Setup Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 && args[0] == "watch" {
		return runWatch(ctx, args[1:], stdout, stderr)
	}

	cfg, err := config.Parse(args, os.Getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if cfg.Verbose {
		logging.Mirror(stderr, slog.LevelDebug)
	}
	if cfg.TelemetryOutput != "" {
		shutdown, err := setupTelemetry(ctx, cfg.TelemetryOutput)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		defer shutdown()
	}
	if err := logging.InitializeRunMetrics(); err != nil {
		fmt.Fprintf(stderr, "Warning: metrics disabled: %v\n", err)
	}

	stats := NewRunStats(cfg.KeepGoing)
	observers := processor.Observers{NewConsole(stdout, cfg.Live, !cfg.Quiet), stats}

	if cfg.APIPort != "" {
		apiCtx, stopAPI := context.WithCancel(ctx)
		apiDone := make(chan struct{})
		go func() {
			defer close(apiDone)
			if err := StartAPIServer(apiCtx, cfg.APIPort, stats); err != nil {
				logging.Log(err.Error(), slog.LevelError)
				fmt.Fprintf(stderr, "Warning: %v\n", err)
			}
		}()
		defer func() {
			lingerAPI(ctx, cfg.APILinger, apiDone)
			stopAPI()
			<-apiDone
		}()
	}

	if cfg.NotifyChannel != "" {
		publisher, err := notify.Open(ctx, cfg.DB.DSN(), cfg.NotifyChannel)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	exec := attempt.NewWordPress(
		attempt.WithTimeout(cfg.Timeout),
		attempt.WithUserAgent(cfg.UserAgent),
		attempt.WithPredicate(attempt.MarkerPredicate(cfg.Marker)),
	)
	dispatcher, err := processor.NewDispatcher(exec, cfg.Jobs, observers)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer dispatcher.Close()

	ctl := &processor.Controller{
		Runner:      dispatcher,
		Concurrency: cfg.Jobs,
		KeepGoing:   cfg.KeepGoing,
		Observer:    observers,
	}
	state, err := ctl.Run(ctx, cfg.Address, cfg.User, source.File{Path: cfg.PasswordFile})
	if err != nil {
		logging.Log("Run failed: "+err.Error(), slog.LevelError)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	RenderResult(stdout, state)
	if state.Status == model.RunInterrupted {
		return exitInterrupted
	}
	return exitOK
}

// lingerAPI keeps the status API up for d after the run so pollers can
// read the terminal status.
func lingerAPI(ctx context.Context, d time.Duration, done <-chan struct{}) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-done:
	}
}

func setupTelemetry(ctx context.Context, dest string) (func(), error) {
	w, err := logging.OpenOutput(dest)
	if err != nil {
		return nil, err
	}
	otelShutdown, err := logging.SetupOTelSDK(ctx, w)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to setup OTel SDK: %w", err)
	}
	return func() {
		// Flush spans and metrics before exiting
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown error: %v\n", err)
		}
		w.Close()
	}, nil
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.ParseWatch(args, os.Getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	err = notify.Watch(ctx, cfg.DB.DSN(), cfg.NotifyChannel, func(ev model.Event) {
		printEvent(stdout, ev)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

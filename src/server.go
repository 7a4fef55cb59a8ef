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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"credprobe/src/logging"
	"credprobe/src/model"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RunStats tracks the state of the current run from its events
type RunStats struct {
	mu             sync.RWMutex
	statusResponse model.StatusResponse
}

func NewRunStats(keepGoing bool) *RunStats {
	return &RunStats{
		statusResponse: model.StatusResponse{
			StartTime: time.Now(),
			Status:    model.RunCounting,
			KeepGoing: keepGoing,
		},
	}
}

func (s *RunStats) Observe(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.RunID != "" {
		s.statusResponse.ID = ev.RunID
	}
	switch ev.Kind {
	case model.EventAttempt:
		s.statusResponse.Attempts++
	case model.EventFound:
		s.statusResponse.Found++
	default:
		s.statusResponse.Total = ev.Total
		s.statusResponse.Processed = ev.Processed
		s.statusResponse.Status = ev.Status
	}
}

// GetStats returns the current statistics as a response struct
func (s *RunStats) GetStats() model.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := s.statusResponse
	resp.Uptime = time.Since(s.statusResponse.StartTime).Truncate(time.Second).String()
	return resp
}

// APIServer holds dependencies for the HTTP handlers
type APIServer struct {
	stats *RunStats
}

func (s *APIServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	return otelhttp.NewHandler(mux, "credprobe-status")
}

// StartAPIServer serves run status until ctx is cancelled
func StartAPIServer(ctx context.Context, port string, stats *RunStats) error {
	srv := &APIServer{stats: stats}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Log("Status API starting on :"+port, slog.LevelInfo)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logging.Log("Status API exited cleanly", slog.LevelInfo)
	}
	return nil
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.stats.GetStats())
}

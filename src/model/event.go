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

package model

import "time"

type EventKind string

const (
	EventStarted  EventKind = "started"
	EventAttempt  EventKind = "attempt"
	EventProgress EventKind = "progress"
	EventFound    EventKind = "found"
	EventFinished EventKind = "finished"
)

// Event is a progress notification emitted during a run.
// Attempt events are emitted from worker goroutines; all others come from
// the controller between batches.
type Event struct {
	Kind      EventKind       `json:"kind"`
	RunID     string          `json:"run_id"`
	Total     int             `json:"total"`
	Processed int             `json:"processed"`
	Outcome   *AttemptOutcome `json:"outcome,omitempty"`
	Status    RunStatus       `json:"status,omitempty"`
	Time      time.Time       `json:"time"`
}

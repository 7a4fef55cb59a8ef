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

type RunStatus string

const (
	RunCounting    RunStatus = "counting"
	RunRunning     RunStatus = "running"
	RunExhausted   RunStatus = "exhausted"
	RunFoundStop   RunStatus = "found_stop"
	RunInterrupted RunStatus = "interrupted"
	RunAborted     RunStatus = "aborted"
)

// Terminal reports whether no further batches will be dispatched.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunExhausted, RunFoundStop, RunInterrupted, RunAborted:
		return true
	}
	return false
}

// AttemptOutcome is the verdict for one candidate password.
type AttemptOutcome struct {
	User      string `json:"user"`
	Password  string `json:"password"`
	Succeeded bool   `json:"succeeded"`
}

type RunState struct {
	RunID      string
	Status     RunStatus
	Total      int
	Processed  int
	Found      []AttemptOutcome
	KeepGoing  bool
	StartedAt  time.Time
	FinishedAt *time.Time
}

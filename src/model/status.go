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

// StatusResponse is the JSON body served by the status API.
type StatusResponse struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
	Status    RunStatus `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Attempts  uint64    `json:"attempts"`
	Found     int       `json:"found"`
	KeepGoing bool      `json:"keep_going"`
}

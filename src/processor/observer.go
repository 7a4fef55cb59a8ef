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

import "credprobe/src/model"

// Observer receives run events. Attempt events arrive from worker
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	Observe(ev model.Event)
}

type ObserverFunc func(ev model.Event)

func (f ObserverFunc) Observe(ev model.Event) { f(ev) }

// Observers fans an event out to every member in order.
type Observers []Observer

func (o Observers) Observe(ev model.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(model.Event) {}

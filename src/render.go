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
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uilive"

	"credprobe/src/model"
)

var (
	foundColor = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
)

// Console prints run progress for a terminal.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	live    *uilive.Writer
	markers bool
	dots    int
}

// NewConsole renders to out. With live set the progress line is redrawn in
// place; with markers set a dot is printed per finished attempt.
func NewConsole(out io.Writer, live, markers bool) *Console {
	c := &Console{out: out, markers: markers}
	if live {
		c.live = uilive.New()
		c.live.Out = out
	}
	return c
}

func (c *Console) Observe(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case model.EventStarted:
		fmt.Fprintf(c.out, "Total passwords: %d\n", ev.Total)
		if c.live != nil {
			c.live.Start()
		}
	case model.EventAttempt:
		if c.markers && c.live == nil {
			fmt.Fprint(c.out, ".")
			c.dots++
		}
	case model.EventProgress:
		if c.live != nil {
			fmt.Fprintf(c.live, "Progress: %d/%d\n", ev.Processed, ev.Total)
			return
		}
		c.endDots()
		fmt.Fprintf(c.out, "Progress: %d/%d\n", ev.Processed, ev.Total)
	case model.EventFinished:
		if c.live != nil {
			c.live.Stop()
			c.live = nil
		}
		c.endDots()
	}
}

func (c *Console) endDots() {
	if c.dots > 0 {
		fmt.Fprintln(c.out)
		c.dots = 0
	}
}

// RenderResult prints the final summary of a run.
func RenderResult(out io.Writer, state *model.RunState) {
	if state.Status == model.RunInterrupted {
		warnColor.Fprintf(out, "Interrupted after %d/%d passwords. Exiting...\n", state.Processed, state.Total)
	}
	if len(state.Found) == 0 {
		fmt.Fprintln(out, "No valid credentials found.")
		return
	}
	fmt.Fprintln(out, "Brute force attack completed. Valid credentials found:")
	for _, r := range state.Found {
		foundColor.Fprintf(out, "Username: '%s'\n", r.User)
		foundColor.Fprintf(out, "Password: '%s'\n", r.Password)
		fmt.Fprintln(out)
	}
}

// printEvent renders one event received by the watch command.
func printEvent(out io.Writer, ev model.Event) {
	id := ev.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	switch ev.Kind {
	case model.EventStarted:
		fmt.Fprintf(out, "[%s] Total passwords: %d\n", id, ev.Total)
	case model.EventProgress:
		fmt.Fprintf(out, "[%s] Progress: %d/%d\n", id, ev.Processed, ev.Total)
	case model.EventFound:
		if ev.Outcome != nil {
			foundColor.Fprintf(out, "[%s] Found: username '%s' password '%s'\n", id, ev.Outcome.User, ev.Outcome.Password)
		}
	case model.EventFinished:
		fmt.Fprintf(out, "[%s] Finished (%s): %d/%d tested\n", id, ev.Status, ev.Processed, ev.Total)
	}
}

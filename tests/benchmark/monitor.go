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

// Command benchmark follows a running credprobe through its status API and
// prints a throughput report when the run ends.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"credprobe/src/model"
)

var (
	title   = color.New(color.FgCyan, color.Bold)
	frame   = color.New(color.FgCyan).SprintFunc()
	heading = color.New(color.FgHiBlack, color.Bold).SprintFunc()
	rule    = color.New(color.FgHiBlack).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
	status  = color.New(color.FgYellow).SprintFunc()
	good    = color.New(color.FgGreen, color.Bold).SprintFunc()
	muted   = color.New(color.FgHiBlack).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

const separator = "------------------------------------------------------------"

func main() {
	// Load API config from .env or defaults
	_ = godotenv.Load("../../.env")
	defaultPort := os.Getenv("API_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}

	apiHost := flag.String("api_host", "localhost", "credprobe status API host")
	apiPort := flag.String("api_port", defaultPort, "credprobe status API port")
	interval := flag.Duration("interval", 500*time.Millisecond, "Polling interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("http://%s:%s/status", *apiHost, *apiPort)
	fmt.Println()
	title.Printf(">> CREDPROBE MONITOR %s <<\n", url)

	start := time.Now()
	final, err := monitor(ctx, http.DefaultClient, url, *interval, os.Stdout)
	if err != nil {
		fmt.Printf("\n%s %v\n", fail("[ERR]"), err)
		os.Exit(1)
	}
	printReport(os.Stdout, final, time.Since(start))
}

// monitor polls url until the run reaches a terminal status or ctx ends,
// printing one table row per poll. Once a snapshot has been read, losing
// the API means the run has ended and the last snapshot is returned.
func monitor(ctx context.Context, client *http.Client, url string, interval time.Duration, out io.Writer) (model.StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprintln(out, heading(fmt.Sprintf("%-10s %-12s %-10s %-10s %-12s", "ELAPSED", "PROCESSED", "ATTEMPTS", "FOUND", "STATUS")))
	fmt.Fprintln(out, rule(separator))

	start := time.Now()
	var last model.StatusResponse
	seen := false
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		elapsed := time.Since(start).Round(time.Second).String()
		stats, err := getStatus(ctx, client, url)
		if err != nil {
			if seen && ctx.Err() == nil {
				fmt.Fprintf(out, "\n%s\n", rule(separator))
				fmt.Fprintln(out, warn("Status API gone, reporting last snapshot"))
				return last, nil
			}
			fmt.Fprintf(out, "\r%-10s %s", elapsed, fail(fmt.Sprintf("%-42s", "Error: Connection Refused (Retrying...)")))
			continue
		}
		last, seen = stats, true

		found := muted
		if stats.Found > 0 {
			found = good
		}
		fmt.Fprintf(out, "\r%-10s %-12s %-10d %s %s",
			elapsed,
			fmt.Sprintf("%d/%d", stats.Processed, stats.Total),
			stats.Attempts,
			found(fmt.Sprintf("%-10d", stats.Found)),
			status(fmt.Sprintf("%-12s", stats.Status)),
		)

		if stats.Status.Terminal() {
			fmt.Fprintf(out, "\n%s\n", rule(separator))
			return stats, nil
		}
	}
}

func getStatus(ctx context.Context, client *http.Client, url string) (model.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.StatusResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.StatusResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.StatusResponse{}, fmt.Errorf("status API returned %d", resp.StatusCode)
	}
	var stats model.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return model.StatusResponse{}, err
	}
	return stats, nil
}

func printReport(out io.Writer, final model.StatusResponse, duration time.Duration) {
	rate := 0.0
	if duration > 0 {
		rate = float64(final.Attempts) / duration.Seconds()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, title.Sprint("┏━━━━━━━━━━━━━━━━━━━━━━ REPORT ━━━━━━━━━━━━━━━━━━━━━━┓"))

	line := func(label, value string, paint func(...any) string) {
		fmt.Fprintf(out, "%s  %-22s %s%s\n", frame("┃"), label, paint(fmt.Sprintf("%-25s", value)), frame("┃"))
	}
	line("Run:", final.ID, bold)
	line("Status:", string(final.Status), bold)
	line("Duration:", duration.Truncate(time.Millisecond).String(), bold)
	line("Tested:", fmt.Sprintf("%d/%d", final.Processed, final.Total), bold)
	line("Attempts:", fmt.Sprintf("%d", final.Attempts), bold)

	found := warn
	if final.Found > 0 {
		found = good
	}
	line("Found:", fmt.Sprintf("%d", final.Found), found)
	line("Throughput:", fmt.Sprintf("%.2f attempts/sec", rate), bold)

	fmt.Fprintln(out, title.Sprint("┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛"))
}

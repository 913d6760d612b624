// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/config"
)

// probeTimeout bounds each status request.
const probeTimeout = 2 * time.Second

// ProbeStatus is the outcome of one health probe.
type ProbeStatus struct {
	Probe     string `json:"probe"`
	URL       string `json:"url"`
	Healthy   bool   `json:"healthy"`
	Code      int    `json:"code,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running Labyrinth server",
		Long: `Query the API ping route and the liveness and readiness endpoints of
the observability listener, using the addresses from configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("http-addr", "", "API listen address")
	cmd.Flags().String("metrics-addr", "", "observability listen address")

	return cmd
}

func runStatus(cmd *cobra.Command, sc *statusConfig) error {
	cfg, err := readConfig(cmd, func(*config.Config) error { return nil })
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: probeTimeout}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	statuses := probeAll(ctx, client, cfg)

	var output string
	if sc.jsonOutput {
		output, err = formatStatusJSON(statuses)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(statuses)
	}
	cmd.Println(output)

	for _, s := range statuses {
		if !s.Healthy {
			return oops.Code("SERVER_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

// probeAll runs the API probe and, when the observability listener is
// enabled, its two health probes.
func probeAll(ctx context.Context, client *http.Client, cfg *config.Config) []ProbeStatus {
	statuses := []ProbeStatus{probe(ctx, client, "api", dialURL(cfg.HTTP.Addr, "/ping"))}
	if cfg.Metrics.Addr != "" {
		statuses = append(statuses,
			probe(ctx, client, "liveness", dialURL(cfg.Metrics.Addr, "/healthz/liveness")),
			probe(ctx, client, "readiness", dialURL(cfg.Metrics.Addr, "/healthz/readiness")),
		)
	}
	return statuses
}

func probe(ctx context.Context, client *http.Client, name, url string) ProbeStatus {
	status := ProbeStatus{Probe: name, URL: url}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse

	status.Code = resp.StatusCode
	status.Healthy = resp.StatusCode == http.StatusOK
	if !status.Healthy {
		status.Error = http.StatusText(resp.StatusCode)
	}
	return status
}

// dialURL turns a listen address into a URL a local client can reach.
// Wildcard hosts are replaced by the loopback address.
func dialURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + path
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tLATENCY\tURL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t-------\t---")

	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		code := "-"
		if s.Code != 0 {
			code = fmt.Sprintf("%d", s.Code)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Probe, state, code, formatLatency(s.LatencyMS), s.URL)
		if s.Error != "" {
			_, _ = fmt.Fprintf(w, "\t%s\t\t\t\n", s.Error)
		}
	}

	_ = w.Flush()
	return b.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}

func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// Package selftest validates the runtime environment fedbook depends on:
// the kernel server, the policy reviewer credentials, the lifecycle event
// graph and the local data directories.
package selftest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Check represents the outcome of a single component probe
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // ok, degraded, error
	Latency int64  `json:"latency_ms,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report represents overall environment health
type Report struct {
	Status    string  `json:"status"` // healthy, degraded, unhealthy
	Checks    []Check `json:"checks"`
	Timestamp string  `json:"timestamp"`
}

// Pinger is satisfied by the event graph driver.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Doctor probes the components a fedbook deployment needs.
type Doctor struct {
	KernelURL    string
	GeminiKey    string
	UploadsDir   string
	NotebooksDir string
	Graph        Pinger // nil when the event graph is not configured

	// HTTPClient overrides the default probe client (tests)
	HTTPClient *http.Client
}

// Run probes each component concurrently and aggregates the results.
func (d *Doctor) Run(ctx context.Context) *Report {
	report := &Report{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	probes := []func(context.Context) Check{
		d.checkKernel,
		d.checkReviewer,
		d.checkGraph,
		d.checkUploads,
		d.checkNotebooks,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, probe := range probes {
		wg.Add(1)
		go func(probe func(context.Context) Check) {
			defer wg.Done()
			result := probe(ctx)
			mu.Lock()
			report.Checks = append(report.Checks, result)
			if result.Status == "error" {
				report.Status = "unhealthy"
			} else if result.Status == "degraded" && report.Status == "healthy" {
				report.Status = "degraded"
			}
			mu.Unlock()
		}(probe)
	}

	wg.Wait()

	sort.Slice(report.Checks, func(i, j int) bool {
		return report.Checks[i].Name < report.Checks[j].Name
	})

	return report
}

func (d *Doctor) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (d *Doctor) checkKernel(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: "kernel"}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.KernelURL, "/")+"/health", nil)
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
		return check
	}

	resp, err := d.client().Do(req)
	check.Latency = time.Since(start).Milliseconds()
	if err != nil {
		check.Status = "error"
		check.Error = fmt.Sprintf("kernel server unreachable at %s: %v", d.KernelURL, err)
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		check.Status = "error"
		check.Error = fmt.Sprintf("kernel server returned %d", resp.StatusCode)
		return check
	}

	check.Status = "ok"
	check.Detail = d.KernelURL
	return check
}

func (d *Doctor) checkReviewer(_ context.Context) Check {
	check := Check{Name: "reviewer"}
	if strings.TrimSpace(d.GeminiKey) == "" {
		check.Status = "error"
		check.Error = "GEMINI_API_KEY not set; execution approval cannot run"
		return check
	}
	check.Status = "ok"
	check.Detail = "api key configured"
	return check
}

func (d *Doctor) checkGraph(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: "event_graph"}

	if d.Graph == nil {
		check.Status = "degraded"
		check.Detail = "not configured; audit events stay in the local log only"
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.Graph.Ping(ctx); err != nil {
		check.Status = "degraded"
		check.Latency = time.Since(start).Milliseconds()
		check.Error = err.Error()
		return check
	}

	check.Status = "ok"
	check.Latency = time.Since(start).Milliseconds()
	return check
}

func (d *Doctor) checkUploads(_ context.Context) Check {
	check := Check{Name: "uploads"}

	entries, err := os.ReadDir(d.UploadsDir)
	if err != nil {
		check.Status = "degraded"
		check.Error = fmt.Sprintf("uploads dir unavailable: %v", err)
		return check
	}

	folders := 0
	for _, e := range entries {
		if e.IsDir() {
			folders++
		}
	}

	check.Status = "ok"
	check.Detail = fmt.Sprintf("%d provider folders", folders)
	return check
}

func (d *Doctor) checkNotebooks(_ context.Context) Check {
	check := Check{Name: "notebooks"}

	info, err := os.Stat(d.NotebooksDir)
	if err != nil {
		check.Status = "error"
		check.Error = fmt.Sprintf("notebooks dir unavailable: %v", err)
		return check
	}
	if !info.IsDir() {
		check.Status = "error"
		check.Error = fmt.Sprintf("%s is not a directory", d.NotebooksDir)
		return check
	}

	check.Status = "ok"
	check.Detail = d.NotebooksDir
	return check
}

// Summary returns a human-readable report.
func (r *Report) Summary() string {
	var sb strings.Builder

	sb.WriteString("FEDBOOK ENVIRONMENT CHECK\n")
	sb.WriteString(strings.Repeat("─", 40) + "\n")

	for _, c := range r.Checks {
		icon := "✓"
		switch c.Status {
		case "degraded":
			icon = "⚠"
		case "error":
			icon = "✗"
		}

		line := fmt.Sprintf("%s %-12s %s", icon, c.Name, c.Status)
		if c.Latency > 0 {
			line += fmt.Sprintf(" (%dms)", c.Latency)
		}
		sb.WriteString(line + "\n")

		if c.Detail != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", c.Detail))
		}
		if c.Error != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", c.Error))
		}
	}

	sb.WriteString("\n")
	switch r.Status {
	case "healthy":
		sb.WriteString("Status: HEALTHY\n")
	case "degraded":
		sb.WriteString("Status: DEGRADED - reduced functionality\n")
	default:
		sb.WriteString("Status: UNHEALTHY - fix errors above\n")
	}

	return sb.String()
}

// QuickLine returns a one-line status suitable for non-verbose output.
func (r *Report) QuickLine() string {
	var failing []string
	for _, c := range r.Checks {
		if c.Status != "ok" {
			failing = append(failing, c.Name)
		}
	}
	if len(failing) == 0 {
		return "all checks passed"
	}
	return fmt.Sprintf("%s: %s", r.Status, strings.Join(failing, ", "))
}

// Healthy reports whether every required component is available.
func (r *Report) Healthy() bool {
	return r.Status != "unhealthy"
}

// Package executor runs a single aircraft's ground-truth WiFi check in an
// isolated, time-boxed worker process. The check drives heavyweight browser
// automation; isolating it means a hung or crashed check costs one result,
// never the scheduler process.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/errors"
	"github.com/skyfleet/fleetlink/internal/logging"
)

// Package-level logger specific to the executor service
var logger *slog.Logger

func init() {
	var err error
	logFilePath := filepath.Join("logs", "executor.log")
	logger, _, err = logging.NewFileLogger(logFilePath, "executor", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize executor file logger: %v", err)
		logger = logging.ForService("executor")
	}
}

// resultSentinel prefixes the single structured result line the worker
// writes to stdout. Everything else on stdout is diagnostic noise and is
// ignored; real diagnostics belong on stderr.
const resultSentinel = "@@RESULT@@ "

// Well-known recoverable error values recorded in place of a result.
const (
	ErrTimeout    = "timeout"
	ErrTerminated = "process_terminated"
	ErrNoResult   = "no_result"
)

// CheckRequest identifies the flight used for one ground-truth lookup.
type CheckRequest struct {
	TailNumber   string
	FlightNumber string
	Date         string // YYYY-MM-DD, departure date
	Origin       string
	Destination  string
}

// CheckResult is the worker's structured payload. A non-empty Error means
// the check produced no usable observation; TailMismatch means the worker
// identified a different aircraft than requested and the result must not
// drive a status update for the requested tail.
type CheckResult struct {
	HasWiFi      bool   `json:"has_wifi"`
	ObservedTail string `json:"observed_tail,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Error        string `json:"error,omitempty"`

	TailMismatch bool `json:"-"`
}

// Failed reports whether the check produced no usable observation.
func (r CheckResult) Failed() bool {
	return r.Error != ""
}

// Executor spawns the configured worker command for each check.
type Executor struct {
	command string
	args    []string
	timeout time.Duration
}

// New validates the executor configuration. A missing worker command is an
// unrecoverable setup failure.
func New(settings conf.ExecutorSettings) (*Executor, error) {
	if strings.TrimSpace(settings.WorkerCommand) == "" {
		return nil, errors.Newf("executor worker command is required").
			Category(errors.CategoryConfiguration).
			Component("executor").
			Build()
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{
		command: settings.WorkerCommand,
		args:    settings.WorkerArgs,
		timeout: timeout,
	}, nil
}

// Run performs one ground-truth check. It always returns a result; failures
// are encoded in CheckResult.Error and never abort the calling batch.
func (e *Executor) Run(ctx context.Context, req CheckRequest) CheckResult {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.args...),
		"--flight", req.FlightNumber,
		"--date", req.Date,
		"--origin", req.Origin,
		"--destination", req.Destination,
	)

	// Worker command comes from validated configuration, not user input.
	cmd := exec.CommandContext(runCtx, e.command, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give the process a short grace period after kill so the pipes close.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if stderr.Len() > 0 {
		logger.Debug("Worker diagnostics",
			"tail_number", req.TailNumber,
			"flight_number", req.FlightNumber,
			"stderr", truncate(stderr.String(), 2000))
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		logger.Warn("Worker timed out, killed",
			"tail_number", req.TailNumber,
			"flight_number", req.FlightNumber,
			"timeout", e.timeout)
		return CheckResult{Error: ErrTimeout}
	case err != nil:
		logger.Warn("Worker terminated abnormally",
			"tail_number", req.TailNumber,
			"flight_number", req.FlightNumber,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error())
		return CheckResult{Error: ErrTerminated}
	}

	result, ok := parseResult(stdout.Bytes())
	if !ok {
		logger.Warn("Worker produced no parseable result",
			"tail_number", req.TailNumber,
			"flight_number", req.FlightNumber,
			"stdout_preview", truncate(stdout.String(), 500))
		return CheckResult{Error: ErrNoResult}
	}

	if result.ObservedTail != "" && !strings.EqualFold(result.ObservedTail, req.TailNumber) {
		// The vendor schedule pointed at the wrong aircraft. Acting on this
		// result would corrupt the state of an unrelated tail.
		logger.Warn("Worker observed a different tail than requested",
			"requested_tail", req.TailNumber,
			"observed_tail", result.ObservedTail,
			"flight_number", req.FlightNumber)
		result.TailMismatch = true
	}

	logger.Info("Worker check complete",
		"tail_number", req.TailNumber,
		"flight_number", req.FlightNumber,
		"has_wifi", result.HasWiFi,
		"provider", result.Provider,
		"tail_mismatch", result.TailMismatch,
		"duration_ms", duration.Milliseconds())

	return result
}

// parseResult extracts the sentinel-prefixed JSON payload from the worker's
// stdout, tolerating diagnostic noise around it. The last sentinel line
// wins, matching a worker that retries internally.
func parseResult(stdout []byte) (CheckResult, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var payload string
	var found bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, resultSentinel); ok {
			payload = rest
			found = true
		}
	}
	if !found {
		return CheckResult{}, false
	}

	var result CheckResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		logger.Warn("Failed to decode worker result payload", "error", err)
		return CheckResult{}, false
	}
	return result, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

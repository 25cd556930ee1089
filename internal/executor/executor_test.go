package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/fleetlink/internal/conf"
	"github.com/skyfleet/fleetlink/internal/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("worker process tests require a POSIX shell")
	}
}

// shellExecutor builds an Executor whose worker is an inline shell script,
// standing in for the browser-automation worker.
func shellExecutor(t *testing.T, script string, timeout time.Duration) *Executor {
	t.Helper()
	exe, err := New(conf.ExecutorSettings{
		WorkerCommand: "/bin/sh",
		WorkerArgs:    []string{"-c", script, "worker", "--"},
		Timeout:       timeout,
	})
	require.NoError(t, err)
	return exe
}

func testRequest() CheckRequest {
	return CheckRequest{
		TailNumber:   "N12345",
		FlightNumber: "UA5331",
		Date:         "2026-08-26",
		Origin:       "ORD",
		Destination:  "DEN",
	}
}

func TestNewRequiresWorkerCommand(t *testing.T) {
	t.Parallel()

	_, err := New(conf.ExecutorSettings{})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))
}

func TestRunParsesResultAmidNoise(t *testing.T) {
	requireShell(t)

	script := `
echo "launching browser..."
echo "some { unbalanced noise"
echo '@@RESULT@@ {"has_wifi":true,"observed_tail":"N12345","aircraft_type":"E75L","provider":"Starlink"}'
echo "shutting down" >&2
`
	exe := shellExecutor(t, script, 10*time.Second)
	result := exe.Run(context.Background(), testRequest())

	assert.False(t, result.Failed())
	assert.True(t, result.HasWiFi)
	assert.Equal(t, "Starlink", result.Provider)
	assert.Equal(t, "E75L", result.AircraftType)
	assert.False(t, result.TailMismatch)
}

func TestRunLastSentinelLineWins(t *testing.T) {
	requireShell(t)

	script := `
echo '@@RESULT@@ {"error":"transient"}'
echo "retrying..."
echo '@@RESULT@@ {"has_wifi":false,"observed_tail":"N12345"}'
`
	exe := shellExecutor(t, script, 10*time.Second)
	result := exe.Run(context.Background(), testRequest())

	assert.False(t, result.Failed())
	assert.False(t, result.HasWiFi)
}

func TestRunTimeoutKillsWorker(t *testing.T) {
	requireShell(t)

	exe := shellExecutor(t, "sleep 30", 200*time.Millisecond)

	start := time.Now()
	result := exe.Run(context.Background(), testRequest())

	assert.Equal(t, ErrTimeout, result.Error)
	assert.Less(t, time.Since(start), 10*time.Second, "worker must be killed at the timeout boundary")
}

func TestRunAbnormalExit(t *testing.T) {
	requireShell(t)

	exe := shellExecutor(t, "echo 'browser crashed' >&2; exit 3", 10*time.Second)
	result := exe.Run(context.Background(), testRequest())

	assert.Equal(t, ErrTerminated, result.Error)
}

func TestRunNoSentinelIsNoResult(t *testing.T) {
	requireShell(t)

	exe := shellExecutor(t, `echo "lots of output, no result line"`, 10*time.Second)
	result := exe.Run(context.Background(), testRequest())

	assert.Equal(t, ErrNoResult, result.Error)
}

func TestRunFlagsTailMismatch(t *testing.T) {
	requireShell(t)

	script := `echo '@@RESULT@@ {"has_wifi":true,"observed_tail":"N77777","provider":"Starlink"}'`
	exe := shellExecutor(t, script, 10*time.Second)
	result := exe.Run(context.Background(), testRequest())

	assert.False(t, result.Failed())
	assert.True(t, result.TailMismatch)
	assert.Equal(t, "N77777", result.ObservedTail)
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	t.Run("plain payload", func(t *testing.T) {
		t.Parallel()
		result, ok := parseResult([]byte(`@@RESULT@@ {"has_wifi":true}` + "\n"))
		require.True(t, ok)
		assert.True(t, result.HasWiFi)
	})

	t.Run("surrounded by noise", func(t *testing.T) {
		t.Parallel()
		stdout := "DevTools listening on ws://...\n@@RESULT@@ {\"has_wifi\":false,\"error\":\"\"}\ntrailing\n"
		result, ok := parseResult([]byte(stdout))
		require.True(t, ok)
		assert.False(t, result.HasWiFi)
	})

	t.Run("invalid json payload", func(t *testing.T) {
		t.Parallel()
		_, ok := parseResult([]byte("@@RESULT@@ {not json}\n"))
		assert.False(t, ok)
	})

	t.Run("empty stdout", func(t *testing.T) {
		t.Parallel()
		_, ok := parseResult(nil)
		assert.False(t, ok)
	})
}

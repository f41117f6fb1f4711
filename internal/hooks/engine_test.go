package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/process"
	"github.com/fyrsmithlabs/gav/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func hook(name string, typ HookType, command string) Config {
	return Config{Name: name, Type: typ, Enabled: true, Command: command, TimeoutMs: DefaultTimeoutMs, FailureMode: Continue}
}

func newEngine(t *testing.T, hooks ...Config) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Hooks: hooks})
	require.NoError(t, err)
	return e
}

func TestRun_DeclarationOrder(t *testing.T) {
	skipWindows(t)
	e := newEngine(t,
		hook("slow", PostEdit, "sleep 0.2; echo slow"),
		hook("fast", PostEdit, "echo fast"),
		hook("other-event", PreCommit, "echo never"),
	)

	results, err := e.Run(context.Background(), PostEdit, Payload{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "slow\n", results[0].Output)
	assert.Equal(t, "fast", results[1].Name)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestRun_SkipsDisabled(t *testing.T) {
	skipWindows(t)
	off := hook("off", PostEdit, "exit 1")
	off.Enabled = false
	e := newEngine(t, off)

	results, err := e.Run(context.Background(), PostEdit, Payload{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_Payload(t *testing.T) {
	skipWindows(t)
	e := newEngine(t, hook("echo", PostEdit, `printf '%s|%s|%s|%s|' "$GAV_HOOK_EVENT" "$GAV_HOOK_NAME" "$GAV_FILE_PATH" "$GAV_OPERATION"; cat`))

	results, err := e.Run(context.Background(), PostEdit, Payload{FilePath: "main.go", Operation: "edit", Content: "package main"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	out := results[0].Output
	prefix := "PostEdit|echo|main.go|edit|"
	require.True(t, len(out) > len(prefix), out)
	assert.Equal(t, prefix, out[:len(prefix)])

	var stdin map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[len(prefix):]), &stdin))
	assert.Equal(t, "PostEdit", stdin["event"])
	assert.Equal(t, "echo", stdin["hook"])
	assert.Equal(t, "main.go", stdin["file_path"])
	assert.Equal(t, "package main", stdin["content"])
}

func TestRun_FailureText(t *testing.T) {
	skipWindows(t)
	e := newEngine(t,
		hook("stderr", PreCommit, "echo out; echo bad >&2; exit 1"),
		hook("stdout", PreCommit, "echo only-out; exit 2"),
		hook("silent", PreCommit, "exit 3"),
	)

	results, err := e.Run(context.Background(), PreCommit, Payload{})
	require.NoError(t, err)

	assert.Equal(t, "bad", results[0].Error)
	assert.Equal(t, "only-out", results[1].Error)
	assert.Equal(t, "exit status 3", results[2].Error)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.False(t, r.Blocked, "continue hooks never block")
	}
}

func TestRun_BlockingHook(t *testing.T) {
	skipWindows(t)
	blocker := hook("policy", PreCommit, "echo denied >&2; exit 1")
	blocker.FailureMode = Block
	passing := hook("passing", PreCommit, "true")
	passing.FailureMode = Block
	e := newEngine(t, blocker, passing)

	results, err := e.Run(context.Background(), PreCommit, Payload{Message: "wip"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Blocked)
	assert.Equal(t, "denied", results[0].Error)
	assert.False(t, results[1].Blocked)
	assert.True(t, results[1].Success, "a blocked sibling does not cancel others")
	assert.Len(t, Blocking(results), 1)
}

func TestRun_Timeout(t *testing.T) {
	skipWindows(t)
	h := hook("sleeper", PostEdit, "sleep 1")
	h.TimeoutMs = 100
	e := newEngine(t, h)

	start := time.Now()
	results, err := e.Run(context.Background(), PostEdit, Payload{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "timeout", results[0].Error)
	assert.GreaterOrEqual(t, results[0].DurationMs, int64(100))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestRun_Cancelled(t *testing.T) {
	skipWindows(t)
	e := newEngine(t, hook("sleeper", PostEdit, "sleep 5"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	results, err := e.Run(ctx, PostEdit, Payload{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "cancelled", results[0].Error)
}

func TestRun_SpawnError(t *testing.T) {
	h := hook("nosh", PostEdit, "true")
	h.FailureMode = Block
	e, err := NewEngine(Options{Hooks: []Config{h}, Runner: &process.Runner{Shell: "/nonexistent/gav-shell"}})
	require.NoError(t, err)

	results, err := e.Run(context.Background(), PostEdit, Payload{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].Blocked)
	assert.NotEmpty(t, results[0].Error)
}

func TestRun_MalformedHook(t *testing.T) {
	e := newEngine(t, hook("good", PostEdit, "true"), hook("empty", PostEdit, "   "))

	results, err := e.Run(context.Background(), PostEdit, Payload{})

	assert.ErrorIs(t, err, ErrMalformedHook)
	assert.Nil(t, results)
}

// countingRunner records concurrency without spawning processes.
type countingRunner struct {
	inFlight, peak atomic.Int32
}

func (c *countingRunner) Run(ctx context.Context, _ process.Spec) process.Result {
	n := c.inFlight.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(30 * time.Millisecond)
	c.inFlight.Add(-1)
	return process.Result{}
}

func TestRun_BoundedParallelism(t *testing.T) {
	runner := &countingRunner{}
	var hooks []Config
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		hooks = append(hooks, hook(name, PostEdit, "true"))
	}
	e, err := NewEngine(Options{Hooks: hooks, Runner: runner, MaxParallel: 2})
	require.NoError(t, err)

	results, err := e.Run(context.Background(), PostEdit, Payload{})
	require.NoError(t, err)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestRun_Observability(t *testing.T) {
	skipWindows(t)
	tt := telemetry.NewTestTelemetry()
	logger := logging.NewTestLogger()
	metrics := NewMetrics()
	before := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("PreSubmit", "failure"))

	e, err := NewEngine(Options{
		Hooks:   []Config{hook("fails", PreSubmit, "exit 1")},
		Tracer:  tt.Tracer("test"),
		Logger:  logger.Logger,
		Metrics: metrics,
	})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), PreSubmit, Payload{})
	require.NoError(t, err)

	tt.AssertSpanExists(t, "hooks.run")
	tt.AssertSpanExists(t, "hooks.exec")
	logger.AssertLogged(t, zapcore.WarnLevel, "hook failed")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("PreSubmit", "failure")))
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  - {name: one, type: PostEdit, command: 'true'}\n"), 0o600))

	e := newEngine(t)
	require.NoError(t, e.Reload(path))
	assert.Len(t, e.For(PostEdit), 1)

	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  - {name: one, type: Bogus, command: 'true'}\n"), 0o600))
	assert.ErrorIs(t, e.Reload(path), ErrInvalidConfig)
	assert.Len(t, e.For(PostEdit), 1, "invalid file keeps the previous set")
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.yaml")
	e := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx, path, nil) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  - {name: w, type: PreEdit, command: 'true'}\n"), 0o600))

	require.Eventually(t, func() bool { return len(e.For(PreEdit)) == 1 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

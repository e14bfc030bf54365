package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/config"
	"starter/internal/ide"
	"starter/pkg/logging"
)

func TestRunConfiguration_FlagsOverrideConfig(t *testing.T) {
	saved := []any{runParallel, runScenarioTimeout, runReportPath}
	defer func() {
		runParallel = saved[0].(int)
		runScenarioTimeout = saved[1].(time.Duration)
		runReportPath = saved[2].(string)
	}()

	c := &cobra.Command{}
	c.Flags().IntVar(&runParallel, "parallel", 1, "")
	c.Flags().DurationVar(&runScenarioTimeout, "timeout", time.Minute, "")
	c.Flags().StringVar(&runReportPath, "report-path", "", "")
	require.NoError(t, c.Flags().Set("parallel", "4"))

	cfg := config.GetDefaultConfig()
	cfg.Runner.ScenarioTimeout = 7 * time.Minute
	cfg.Runner.ReportPath = "/reports"
	cfg.Runner.FailFast = true

	rc := runConfiguration(c, cfg)
	assert.Equal(t, 4, rc.Parallel, "explicit flag wins")
	assert.Equal(t, 7*time.Minute, rc.ScenarioTimeout, "unset flag keeps the configured value")
	assert.Equal(t, "/reports", rc.ReportPath)
	assert.True(t, rc.FailFast)
	assert.Equal(t, config.DefaultWaitTimeout, rc.SubscriberTimeout)
	assert.Equal(t, config.DefaultKillGracePeriod, rc.KillGracePeriod)
}

func TestBusOptions(t *testing.T) {
	assert.Len(t, busOptions(config.GetDefaultConfig()), 2)
}

func TestRunList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indexing.yaml"),
		[]byte("command: idea\ntimeout: 2m\ntags: [smoke]\ndescription: Indexes the project\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "startup.yaml"),
		[]byte("command: idea\nskip: true\n"), 0644))

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	require.NoError(t, runList(c, []string{dir}))

	text := out.String()
	assert.Contains(t, text, "indexing")
	assert.Contains(t, text, "2m0s")
	assert.Contains(t, text, "Indexes the project")
	assert.Contains(t, text, "startup (skipped)")
	assert.Contains(t, text, "2 of 2 scenario(s) selected")
}

func TestRunList_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	err := runList(&cobra.Command{}, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

type exitingProcess struct {
	done chan struct{}
}

func (p *exitingProcess) PID() int                      { return 4242 }
func (p *exitingProcess) Done() <-chan struct{}         { return p.done }
func (p *exitingProcess) Wait() (int, error)            { return 0, nil }
func (p *exitingProcess) Terminate(time.Duration) error { return nil }
func (p *exitingProcess) Logs() *ide.Logs               { return &ide.Logs{} }

type exitingLauncher struct {
	mu    sync.Mutex
	specs []ide.LaunchSpec
}

func (l *exitingLauncher) Start(_ context.Context, spec ide.LaunchSpec) (ide.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	done := make(chan struct{})
	close(done)
	return &exitingProcess{done: done}, nil
}

func TestNewLaunchApp(t *testing.T) {
	var logs syncWriter
	restore := logging.InitForTest(logging.LevelInfo, &logs)
	defer restore()

	launcher := &exitingLauncher{}
	var runner *ide.Runner
	app := newLaunchApp(config.GetDefaultConfig(), launcher, &runner)
	require.NoError(t, app.Err())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	require.NotNil(t, runner)

	result, err := runner.Run(ctx, ide.LaunchSpec{RunID: "r-1", Scenario: "smoke", Command: "idea"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 4242, result.PID)
	require.NoError(t, app.Stop(ctx))

	assert.Len(t, launcher.specs, 1)
	assert.Contains(t, logs.String(), "IDE for smoke exited with code 0")
}

func TestPrintLaunchResult(t *testing.T) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	printLaunchResult(c, &ide.RunResult{RunID: "r-9", PID: 12, ExitCode: -1, Killed: true, KillReason: "timeout"})

	text := out.String()
	assert.Contains(t, text, "r-9")
	assert.Contains(t, text, "KILLED")
	assert.Contains(t, text, "timeout")
}

// syncWriter is a bytes.Buffer safe for the concurrent writes of bus goroutines.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

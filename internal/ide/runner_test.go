package ide

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/bus"
	"starter/internal/events"
)

type fakeProcess struct {
	pid        int
	done       chan struct{}
	once       sync.Once
	exitCode   int
	terminated atomic.Bool
	grace      time.Duration
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.exitCode = code
		close(p.done)
	})
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Logs() *Logs           { return &Logs{Stdout: "started\n"} }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.exitCode, nil
}

func (p *fakeProcess) Terminate(grace time.Duration) error {
	p.terminated.Store(true)
	p.grace = grace
	p.exit(-1)
	return nil
}

type fakeLauncher struct {
	proc    *fakeProcess
	err     error
	started []LaunchSpec
}

func (l *fakeLauncher) Start(_ context.Context, spec LaunchSpec) (Process, error) {
	l.started = append(l.started, spec)
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

// lifecycle records the launch and kill events seen on a bus.
type lifecycle struct {
	mu       sync.Mutex
	launches []events.IdeLaunchEvent
	kills    []events.IdeKillEvent
}

func recordLifecycle(t *testing.T, b *bus.Bus) *lifecycle {
	t.Helper()
	l := &lifecycle{}
	_, err := bus.Subscribe(b, "recorder", func(_ context.Context, e events.IdeLaunchEvent) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.launches = append(l.launches, e)
		return nil
	}, bus.SkipRetained())
	require.NoError(t, err)
	_, err = bus.Subscribe(b, "recorder", func(_ context.Context, e events.IdeKillEvent) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.kills = append(l.kills, e)
		return nil
	}, bus.SkipRetained())
	require.NoError(t, err)
	return l
}

func (l *lifecycle) launchStates() []bus.EventState {
	l.mu.Lock()
	defer l.mu.Unlock()
	states := make([]bus.EventState, 0, len(l.launches))
	for _, e := range l.launches {
		states = append(states, e.EventState())
	}
	return states
}

func (l *lifecycle) killStates() []bus.EventState {
	l.mu.Lock()
	defer l.mu.Unlock()
	states := make([]bus.EventState, 0, len(l.kills))
	for _, e := range l.kills {
		states = append(states, e.EventState())
	}
	return states
}

func newBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.UnsubscribeAll)
	return b
}

func TestRunner_NormalExit(t *testing.T) {
	b := newBus(t)
	rec := recordLifecycle(t, b)
	proc := newFakeProcess(4242)
	launcher := &fakeLauncher{proc: proc}

	// The process exits once the InTime subscribers have run.
	_, err := bus.Subscribe(b, "exit-on-in-time", func(_ context.Context, e events.IdeLaunchEvent) error {
		assert.Equal(t, 4242, e.Run.PID)
		proc.exit(3)
		return nil
	}, bus.OnState(bus.StateInTime))
	require.NoError(t, err)

	runner := NewRunner(b, launcher, WithSubscriberTimeout(time.Second))
	result, err := runner.Run(context.Background(), LaunchSpec{
		RunID:    "run-1",
		Scenario: "indexing",
		Command:  "idea.sh",
		Args:     []string{"--headless"},
	})
	require.NoError(t, err)

	assert.Equal(t, []bus.EventState{bus.StateBefore, bus.StateInTime, bus.StateAfter}, rec.launchStates())
	assert.Empty(t, rec.killStates())
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, 4242, result.PID)
	assert.False(t, result.Killed)
	assert.False(t, proc.terminated.Load())
	assert.Equal(t, "started\n", result.Logs.Stdout)
	assert.Empty(t, result.SubscriberTimeouts())
	require.Len(t, launcher.started, 1)

	rec.mu.Lock()
	after := rec.launches[2]
	rec.mu.Unlock()
	assert.Equal(t, 3, after.ExitCode)
	assert.Equal(t, []string{"idea.sh", "--headless"}, after.Run.Command)
	assert.NoError(t, after.Err)
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	b := newBus(t)
	rec := recordLifecycle(t, b)
	proc := newFakeProcess(7)

	runner := NewRunner(b, &fakeLauncher{proc: proc}, WithSubscriberTimeout(time.Second), WithKillGracePeriod(3*time.Second))
	result, err := runner.Run(context.Background(), LaunchSpec{
		RunID:    "run-2",
		Scenario: "hang",
		Command:  "idea.sh",
		Timeout:  50 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrRunTimedOut)

	assert.Equal(t, []bus.EventState{bus.StateBefore, bus.StateInTime, bus.StateBeforeKill, bus.StateAfter}, rec.launchStates())
	assert.Equal(t, []bus.EventState{bus.StateBefore, bus.StateAfter}, rec.killStates())
	assert.True(t, result.Killed)
	assert.Equal(t, events.KillReasonTimeout, result.KillReason)
	assert.Equal(t, -1, result.ExitCode)
	assert.True(t, proc.terminated.Load())
	assert.Equal(t, 3*time.Second, proc.grace)

	retained, ok := bus.Retained[events.IdeLaunchEvent](b)
	require.True(t, ok)
	assert.Equal(t, bus.StateAfter, retained.EventState())
}

func TestRunner_LaunchGracePeriodWins(t *testing.T) {
	b := newBus(t)
	proc := newFakeProcess(8)

	runner := NewRunner(b, &fakeLauncher{proc: proc})
	_, err := runner.Run(context.Background(), LaunchSpec{
		Command:         "idea.sh",
		Timeout:         10 * time.Millisecond,
		KillGracePeriod: time.Second,
	})
	require.ErrorIs(t, err, ErrRunTimedOut)
	assert.Equal(t, time.Second, proc.grace)
}

func TestRunner_CancelledContext(t *testing.T) {
	b := newBus(t)
	rec := recordLifecycle(t, b)
	proc := newFakeProcess(9)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := bus.Subscribe(b, "canceller", func(_ context.Context, _ events.IdeLaunchEvent) error {
		cancel()
		return nil
	}, bus.OnState(bus.StateInTime))
	require.NoError(t, err)

	runner := NewRunner(b, &fakeLauncher{proc: proc}, WithSubscriberTimeout(time.Second))
	result, err := runner.Run(ctx, LaunchSpec{RunID: "run-3", Command: "idea.sh"})
	require.ErrorIs(t, err, context.Canceled)

	assert.True(t, result.Killed)
	assert.Equal(t, events.KillReasonCancelled, result.KillReason)
	assert.Equal(t, []bus.EventState{bus.StateBefore, bus.StateInTime, bus.StateBeforeKill, bus.StateAfter}, rec.launchStates())
}

func TestRunner_LaunchFailure(t *testing.T) {
	b := newBus(t)
	rec := recordLifecycle(t, b)

	runner := NewRunner(b, &fakeLauncher{err: errors.New("executable not found")})
	result, err := runner.Run(context.Background(), LaunchSpec{RunID: "run-4", Scenario: "broken", Command: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch broken")
	assert.Contains(t, err.Error(), "executable not found")

	assert.Equal(t, []bus.EventState{bus.StateBefore, bus.StateAfter}, rec.launchStates())
	assert.Equal(t, -1, result.ExitCode)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Error(t, rec.launches[1].Err)
}

func TestRunner_RecordsSubscriberTimeouts(t *testing.T) {
	b := newBus(t)
	proc := newFakeProcess(10)

	_, err := bus.Subscribe(b, "slow-profiler", func(ctx context.Context, _ events.IdeLaunchEvent) error {
		<-ctx.Done()
		return ctx.Err()
	}, bus.OnState(bus.StateBefore))
	require.NoError(t, err)
	_, err = bus.Subscribe(b, "exit-on-in-time", func(_ context.Context, _ events.IdeLaunchEvent) error {
		proc.exit(0)
		return nil
	}, bus.OnState(bus.StateInTime))
	require.NoError(t, err)

	runner := NewRunner(b, &fakeLauncher{proc: proc}, WithSubscriberTimeout(50*time.Millisecond))
	result, err := runner.Run(context.Background(), LaunchSpec{RunID: "run-5", Command: "idea.sh"})
	require.NoError(t, err)

	timeouts := result.SubscriberTimeouts()
	require.NotEmpty(t, timeouts)
	assert.Equal(t, []string{"slow-profiler"}, timeouts[0].Pending)
	assert.Equal(t, 0, result.ExitCode)
}

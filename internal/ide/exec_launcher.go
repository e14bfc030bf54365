package ide

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"starter/pkg/logging"
)

// logCapture captures stdout and stderr from a process
type logCapture struct {
	stdoutBuf    *bytes.Buffer
	stderrBuf    *bytes.Buffer
	stdoutReader *io.PipeReader
	stderrReader *io.PipeReader
	stdoutWriter *io.PipeWriter
	stderrWriter *io.PipeWriter
	prefix       string
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

func newLogCapture(prefix string) *logCapture {
	lc := &logCapture{
		stdoutBuf: &bytes.Buffer{},
		stderrBuf: &bytes.Buffer{},
		prefix:    prefix,
	}

	lc.stdoutReader, lc.stdoutWriter = io.Pipe()
	lc.stderrReader, lc.stderrWriter = io.Pipe()

	lc.wg.Add(2)
	go lc.captureOutput(lc.stdoutReader, lc.stdoutBuf)
	go lc.captureOutput(lc.stderrReader, lc.stderrBuf)

	return lc
}

// captureOutput copies reader line by line into buffer and mirrors each line
// to the debug log.
func (lc *logCapture) captureOutput(reader io.Reader, buffer *bytes.Buffer) {
	defer lc.wg.Done()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		logging.Debug("IDE", "[%s] %s", lc.prefix, line)
		lc.mu.Lock()
		buffer.WriteString(line + "\n")
		lc.mu.Unlock()
	}
	// Keep draining after an over-long line so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, reader)
}

// close closes the capture pipes and waits for completion
func (lc *logCapture) close() {
	lc.stdoutWriter.Close()
	lc.stderrWriter.Close()
	lc.wg.Wait()
}

func (lc *logCapture) getLogs() *Logs {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	stdout := lc.stdoutBuf.String()
	stderr := lc.stderrBuf.String()

	combined := ""
	if stdout != "" {
		combined += "=== STDOUT ===\n" + stdout
	}
	if stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += "=== STDERR ===\n" + stderr
	}

	return &Logs{
		Stdout:   stdout,
		Stderr:   stderr,
		Combined: combined,
	}
}

// outputWaitDelay bounds how long Wait keeps reading output after the process
// exited, in case a detached child still holds the pipes.
const outputWaitDelay = 2 * time.Second

// ExecLauncher starts IDE processes with os/exec, each in its own process
// group so the IDE and everything it spawned can be terminated together.
type ExecLauncher struct{}

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Start implements Launcher. The process is not bound to ctx; ending a run is
// the caller's job through Terminate.
func (l *ExecLauncher) Start(ctx context.Context, spec LaunchSpec) (Process, error) {
	if spec.Command == "" {
		return nil, errors.New("no command to launch")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.WorkingDir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.WaitDelay = outputWaitDelay
	configureProcAttr(cmd)

	capture := newLogCapture(spec.Scenario)
	cmd.Stdout = capture.stdoutWriter
	cmd.Stderr = capture.stderrWriter

	logging.Debug("IDE", "Starting command: %s %v", spec.Command, spec.Args)
	if err := cmd.Start(); err != nil {
		capture.close()
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}

	p := &execProcess{
		cmd:     cmd,
		capture: capture,
		done:    make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

// execProcess is a managed IDE process with its command and log capture
type execProcess struct {
	cmd     *exec.Cmd
	capture *logCapture

	done     chan struct{}
	exitCode int
	waitErr  error
}

func (p *execProcess) reap() {
	err := p.cmd.Wait()
	p.capture.close()

	p.exitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
			p.waitErr = err
		}
	}
	close(p.done)
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Wait() (int, error) {
	<-p.done
	return p.exitCode, p.waitErr
}

func (p *execProcess) Logs() *Logs {
	return p.capture.getLogs()
}

// Terminate sends SIGTERM to the process group, waits up to grace for the
// process to exit and then kills the whole group.
func (p *execProcess) Terminate(grace time.Duration) error {
	pid := p.PID()

	select {
	case <-p.done:
		// Leftover children of an exited leader still get cleaned up.
		_ = killProcessGroup(pid, syscall.SIGKILL)
		return nil
	default:
	}

	logging.Debug("IDE", "Shutting down process group %d", pid)
	if err := killProcessGroup(pid, syscall.SIGTERM); err != nil {
		logging.Debug("IDE", "Failed to send SIGTERM to process group %d: %v", pid, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		_ = killProcessGroup(pid, syscall.SIGKILL)
		return nil
	case <-timer.C:
	}

	logging.Debug("IDE", "Graceful shutdown of %d timed out after %s, killing process group", pid, grace)
	err := killProcessGroup(pid, syscall.SIGKILL)
	<-p.done
	return err
}

package runner

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
	"time"
)

// DefaultWaitDelay bounds how long Wait blocks on I/O after a kill.
const DefaultWaitDelay = 5 * time.Second

// Logf receives one line of live output. It must not block.
type Logf func(line string)

// Spec describes one child-process execution.
type Spec struct {
	// Command is the full argv, e.g. ["uv", "run", "--", "python", "main.py"].
	Command []string

	// Dir is the working directory (the project root).
	Dir string

	// Timeout bounds the execution; zero means no limit.
	Timeout time.Duration
}

// Outcome is the structured result of one execution. It is transient:
// produced once, consumed by the classifier, then discarded except for the
// portion copied into revision history on failure.
type Outcome struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	TimedOut  bool
	Cancelled bool
	Timeout   time.Duration
	Duration  time.Duration
}

// Success reports whether the run is the sole success signal: exit 0 with no
// timeout or cancellation.
func (o *Outcome) Success() bool {
	return o.ExitCode == 0 && !o.TimedOut && !o.Cancelled
}

// Runner executes scripts as child processes. It applies no retry policy;
// that lives entirely in the loop controller.
type Runner struct{}

// New returns a process runner.
func New() *Runner {
	return &Runner{}
}

// Run spawns the command and blocks until it exits, the timeout elapses, or
// ctx is cancelled, whichever comes first. Output is streamed line-by-line
// to sink as it is produced and captured into the outcome. The child and its
// descendants are terminated on timeout or cancellation.
//
// A non-nil error means the process could not be spawned at all; execution
// failures are reported through the outcome.
func (r *Runner) Run(ctx context.Context, spec Spec, sink Logf) (*Outcome, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if sink == nil {
		sink = func(string) {}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = DefaultWaitDelay
	setProcAttr(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", spec.Command[0], err)
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(stdout, &outBuf, sink, &wg)
	go drain(stderr, &errBuf, sink, &wg)
	wg.Wait()

	waitErr := cmd.Wait()

	outcome := &Outcome{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Timeout:  spec.Timeout,
		Duration: time.Since(start),
	}

	switch {
	case ctx.Err() != nil:
		// The caller's context fired: a user-directed abort, not a failure.
		outcome.Cancelled = true
		outcome.ExitCode = -1
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.TimedOut = true
		outcome.ExitCode = -1
	case waitErr == nil:
		outcome.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("wait: %w", waitErr)
		}
	}

	return outcome, nil
}

// drain copies a pipe into buf while forwarding each line to sink.
func drain(r io.Reader, buf *bytes.Buffer, sink Logf, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		sink(line)
	}
}

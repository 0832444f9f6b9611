// Package procrun runs one external process at a time, streams its output
// line by line and reports a single terminal event.
package procrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

const (
	DefaultKillGrace    = 500 * time.Millisecond
	DefaultStartTimeout = 5 * time.Second

	maxTail = 8192
)

var ErrStartTimeout = errors.New("process did not start in time")

// Terminal is delivered exactly once per launch that was not superseded.
type Terminal struct {
	ExitCode int
	Crashed  bool
	Err      error
	Stderr   string
	Duration time.Duration
}

func (t Terminal) Succeeded() bool {
	return !t.Crashed && t.ExitCode == 0 && t.Err == nil
}

// Message renders a one-line reason for a failed terminal event.
func (t Terminal) Message() string {
	switch {
	case t.Succeeded():
		return ""
	case t.Err != nil:
		return t.Err.Error()
	case t.Crashed:
		return "process crashed"
	default:
		return fmt.Sprintf("exit code %d", t.ExitCode)
	}
}

type OutputFunc func(stream Stream, line string)

// Runner keeps at most one active process. Launching while a previous
// process is still alive kills it first; its terminal event is dropped.
type Runner struct {
	KillGrace    time.Duration
	StartTimeout time.Duration

	mu     sync.Mutex
	active *process
}

func New() *Runner {
	return &Runner{KillGrace: DefaultKillGrace, StartTimeout: DefaultStartTimeout}
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu         sync.Mutex
	started    bool
	killed     bool
	superseded bool
}

func (p *process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	if p.started && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *process) isSuperseded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.superseded
}

// Launch starts exe with args and returns immediately. The returned channel
// receives one Terminal and is then closed; for a superseded launch it is
// closed without a value. Cancelling ctx kills the process.
func (r *Runner) Launch(ctx context.Context, exe string, args []string, onOutput OutputFunc) <-chan Terminal {
	out := make(chan Terminal, 1)

	p := &process{cmd: exec.Command(exe, args...), done: make(chan struct{})}
	r.mu.Lock()
	prev := r.active
	r.active = p
	r.mu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		prev.superseded = true
		prev.mu.Unlock()
		r.killAndWait(prev, r.killGrace())
	}

	go r.run(ctx, p, onOutput, out)
	return out
}

// Stop kills the active process, if any, and waits up to grace for it to
// exit. It reports whether the process was gone by the deadline.
func (r *Runner) Stop(grace time.Duration) bool {
	r.mu.Lock()
	p := r.active
	r.mu.Unlock()
	if p == nil {
		return true
	}
	return r.killAndWait(p, grace)
}

// Active reports whether a launched process has not yet finished.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Runner) killAndWait(p *process, grace time.Duration) bool {
	p.kill()
	select {
	case <-p.done:
		return true
	case <-time.After(grace):
		return false
	}
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return DefaultKillGrace
}

func (r *Runner) startTimeout() time.Duration {
	if r.StartTimeout > 0 {
		return r.StartTimeout
	}
	return DefaultStartTimeout
}

func (r *Runner) run(ctx context.Context, p *process, onOutput OutputFunc, out chan<- Terminal) {
	defer close(out)

	began := time.Now()
	term := r.execute(ctx, p, onOutput)
	term.Duration = time.Since(began)

	r.mu.Lock()
	if r.active == p {
		r.active = nil
	}
	r.mu.Unlock()
	close(p.done)

	if p.isSuperseded() {
		return
	}
	out <- term
}

func (r *Runner) execute(ctx context.Context, p *process, onOutput OutputFunc) Terminal {
	cmd := p.cmd
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return startFailure(fmt.Errorf("setup stdout pipe: %w", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return startFailure(fmt.Errorf("setup stderr pipe: %w", err))
	}

	if err := r.start(p); err != nil {
		return startFailure(err)
	}
	stop := context.AfterFunc(ctx, p.kill)
	defer stop()

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream Stream, rd io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(rd)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			mu.Unlock()
			if onOutput != nil && !p.isSuperseded() {
				onOutput(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()
	term := Terminal{Stderr: strings.TrimSpace(errBuf.String())}
	state := cmd.ProcessState
	if state == nil {
		term.ExitCode = -1
		term.Crashed = true
		term.Err = fmt.Errorf("wait %s: %w", cmd.Path, waitErr)
		return term
	}
	term.ExitCode = state.ExitCode()
	if signaled(state.Sys()) || term.ExitCode < 0 {
		term.Crashed = true
	}
	return term
}

// start bounds cmd.Start by the start timeout. A process that comes up
// after the deadline is killed.
func (r *Runner) start(p *process) error {
	result := make(chan error, 1)
	go func() {
		err := p.cmd.Start()
		p.mu.Lock()
		if err == nil {
			p.started = true
			if p.killed {
				_ = p.cmd.Process.Kill()
			}
		}
		p.mu.Unlock()
		result <- err
	}()

	timer := time.NewTimer(r.startTimeout())
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("start %s: %w", p.cmd.Path, err)
		}
		return nil
	case <-timer.C:
		p.kill()
		go func() {
			if err := <-result; err == nil {
				_ = p.cmd.Wait()
			}
		}()
		return fmt.Errorf("start %s: %w", p.cmd.Path, ErrStartTimeout)
	}
}

func startFailure(err error) Terminal {
	return Terminal{ExitCode: -1, Crashed: true, Err: err}
}

func signaled(sys any) bool {
	ws, ok := sys.(interface{ Signaled() bool })
	return ok && ws.Signaled()
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream Stream, line string) {
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxTail {
		keepTail(b)
	}
	b.WriteString(line + "\n")
}

// keepTail drops the oldest half of b so the most recent output survives.
func keepTail(b *strings.Builder) {
	s := b.String()
	cut := len(s) - maxTail/2
	if i := strings.IndexByte(s[cut:], '\n'); i >= 0 {
		cut += i + 1
	}
	b.Reset()
	b.WriteString(s[cut:])
}

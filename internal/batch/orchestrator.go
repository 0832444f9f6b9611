// Package batch drives one batch of speed-change jobs through a single
// external process at a time and reports what happened to an Observer.
package batch

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidspeed/internal/filtergraph"
	"vidspeed/internal/model"
	"vidspeed/internal/procrun"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Settings are fixed for the lifetime of one batch. BatchID is generated
// when empty.
type Settings struct {
	BatchID     string
	SpeedFactor float64
	OutputDir   string
	ToolPath    string
	Overlay     *model.OverlaySpec
}

// Launcher is the process side of the orchestrator. *procrun.Runner
// satisfies it.
type Launcher interface {
	Launch(ctx context.Context, exe string, args []string, onOutput procrun.OutputFunc) <-chan procrun.Terminal
	Stop(grace time.Duration) bool
}

type Orchestrator struct {
	runner    Launcher
	observer  Observer
	plans     *filtergraph.Builder
	now       func() time.Time
	killGrace time.Duration

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	summary *model.BatchSummary
}

func New(runner Launcher, observer Observer) *Orchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Orchestrator{
		runner:    runner,
		observer:  observer,
		plans:     filtergraph.New(),
		now:       time.Now,
		killGrace: procrun.DefaultKillGrace,
		state:     StateIdle,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done is closed when the current (or last) batch has emitted its summary.
// Before any batch it returns a closed channel.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return o.done
}

// Summary returns the summary of the last finished batch.
func (o *Orchestrator) Summary() (model.BatchSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.summary == nil {
		return model.BatchSummary{}, false
	}
	return *o.summary, true
}

// Wait blocks until the running batch finishes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (model.BatchSummary, error) {
	select {
	case <-o.Done():
	case <-ctx.Done():
		return model.BatchSummary{}, ctx.Err()
	}
	summary, ok := o.Summary()
	if !ok {
		return model.BatchSummary{}, fmt.Errorf("no batch has run")
	}
	return summary, nil
}

// Start validates the request, queues one job per file and returns the
// batch id without waiting for any job. Precondition failures leave the
// orchestrator idle and are returned as *PreconditionError.
func (o *Orchestrator) Start(ctx context.Context, files []string, settings Settings) (string, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return "", ErrBatchRunning
	}
	run, err := o.prepare(files, settings)
	if err != nil {
		o.mu.Unlock()
		o.emit(Event{Kind: EventAlert, Severity: SeverityCritical, Message: "Error: " + err.Error()})
		return "", err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.state = StateRunning
	o.cancel = cancel
	o.done = done
	o.summary = nil
	o.mu.Unlock()

	o.emit(Event{
		Kind:    EventLog,
		BatchID: run.ID,
		Stream:  StreamInfo,
		Message: fmt.Sprintf("Starting batch processing of %d videos...", run.TotalCount),
	})
	o.emit(Event{Kind: EventProgress, BatchID: run.ID, Total: run.TotalCount})

	go o.control(ctx, run, done)
	return run.ID, nil
}

// Shutdown kills the active process and abandons the remaining jobs. It
// reports whether the batch finished within grace plus the kill grace.
func (o *Orchestrator) Shutdown(grace time.Duration) bool {
	o.mu.Lock()
	running := o.state == StateRunning
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if !running {
		return true
	}

	cancel()
	o.runner.Stop(grace)
	select {
	case <-done:
		return true
	case <-time.After(grace + o.killGrace):
		return false
	}
}

func (o *Orchestrator) prepare(files []string, s Settings) (*model.BatchRun, error) {
	if len(files) == 0 {
		return nil, precondition(ErrNoInputs, "add at least one video file")
	}
	if s.SpeedFactor <= 0 || math.IsNaN(s.SpeedFactor) || math.IsInf(s.SpeedFactor, 0) {
		return nil, precondition(ErrSpeed, "got %v", s.SpeedFactor)
	}
	tool := strings.TrimSpace(s.ToolPath)
	if tool == "" {
		return nil, precondition(ErrToolMissing, "set the ffmpeg path")
	}
	resolved, err := exec.LookPath(tool)
	if err != nil {
		return nil, precondition(ErrToolNotExecutable, "%s: %v", tool, err)
	}
	dir := strings.TrimSpace(s.OutputDir)
	if dir == "" {
		return nil, precondition(ErrOutputDir, "output directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, precondition(ErrOutputDir, "%s: %v", dir, err)
	}

	run := &model.BatchRun{
		ID:              strings.TrimSpace(s.BatchID),
		Jobs:            make([]model.Job, len(files)),
		TotalCount:      len(files),
		SpeedFactor:     s.SpeedFactor,
		OutputDirectory: dir,
		ToolPath:        resolved,
		StartedAt:       o.now().UTC(),
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if s.Overlay != nil {
		ov := *s.Overlay
		run.Overlay = &ov
	}
	for i, f := range files {
		run.Jobs[i] = model.Job{Index: i + 1, InputPath: f}
		if err := model.TransitionJobStatus(&run.Jobs[i], model.StatusPending); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// OutputPath derives {dir}/{base}_x{speed}{ext}. Only the last extension is
// stripped; two inputs with the same derived name overwrite each other.
func OutputPath(outputDir, inputPath string, speed float64) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+"_x"+filtergraph.SpeedLabel(speed)+ext)
}

func (o *Orchestrator) control(ctx context.Context, run *model.BatchRun, done chan struct{}) {
	queue := &jobQueue{}
	for i := range run.Jobs {
		queue.Push(&run.Jobs[i])
	}

	for ctx.Err() == nil {
		job, ok := queue.Pop()
		if !ok {
			break
		}
		o.runJob(ctx, run, job)
	}
	o.finish(run, len(queue.Drain()), done)
}

func (o *Orchestrator) runJob(ctx context.Context, run *model.BatchRun, job *model.Job) {
	name := filepath.Base(job.InputPath)
	job.OutputPath = OutputPath(run.OutputDirectory, job.InputPath, run.SpeedFactor)

	plan := o.plans.Build(run.SpeedFactor, run.Overlay, name)
	for _, w := range plan.Warnings {
		o.log(run, StreamInfo, w)
		o.emit(Event{Kind: EventAlert, BatchID: run.ID, Severity: SeverityWarning, Message: w, Job: snapshot(job)})
	}
	args := plan.Args(job.InputPath, job.OutputPath)

	_ = model.TransitionJobStatus(job, model.StatusRunning)
	job.StartedAt = o.now().UTC()
	o.log(run, StreamInfo, fmt.Sprintf("Processing (%d/%d): %s -> %s", job.Index, run.TotalCount, name, filepath.Base(job.OutputPath)))
	o.log(run, StreamInfo, "FFmpeg command: "+filtergraph.CommandLine(run.ToolPath, args))
	o.emit(Event{Kind: EventJobStarted, BatchID: run.ID, Job: snapshot(job), Completed: run.CompletedCount, Total: run.TotalCount})

	tracker := newProgressTracker(run.SpeedFactor)
	var trackMu sync.Mutex
	onOutput := func(stream procrun.Stream, line string) {
		o.log(run, string(stream), line)
		if stream != procrun.StreamStderr {
			return
		}
		trackMu.Lock()
		p, ok := tracker.Handle(line)
		trackMu.Unlock()
		if ok {
			o.emit(Event{Kind: EventJobProgress, BatchID: run.ID, Job: &model.Job{Index: job.Index, InputPath: job.InputPath}, Progress: &p})
		}
	}

	term, delivered, cancelled := o.await(ctx, o.runner.Launch(ctx, run.ToolPath, args, onOutput))
	job.FinishedAt = o.now().UTC()
	job.ExitCode = term.ExitCode
	job.Crashed = term.Crashed

	switch {
	case cancelled:
		o.failJob(run, job, "Cancelled while processing "+name, "cancelled")
	case !delivered:
		o.failJob(run, job, "Error: FFmpeg crashed while processing "+name, "process terminated without status")
	case term.Succeeded():
		_ = model.TransitionJobStatus(job, model.StatusSucceeded)
		run.CompletedCount++
		o.log(run, StreamInfo, "Successfully processed: "+name)
	case term.Crashed:
		o.failJob(run, job, "Error: FFmpeg crashed while processing "+name, failureDetail(term))
	default:
		o.failJob(run, job, fmt.Sprintf("Error: FFmpeg failed (exit code %d) for %s", term.ExitCode, name), failureDetail(term))
	}

	o.emit(Event{Kind: EventJobTerminal, BatchID: run.ID, Job: snapshot(job), Completed: run.CompletedCount, Failed: run.FailedCount, Total: run.TotalCount})
	o.emit(Event{Kind: EventProgress, BatchID: run.ID, Completed: run.CompletedCount, Failed: run.FailedCount, Total: run.TotalCount})
}

// await waits for the terminal event. On cancellation the process is
// stopped and its event is given one grace period to arrive.
func (o *Orchestrator) await(ctx context.Context, ch <-chan procrun.Terminal) (procrun.Terminal, bool, bool) {
	select {
	case term, ok := <-ch:
		return term, ok, ctx.Err() != nil
	case <-ctx.Done():
	}
	o.runner.Stop(o.killGrace)
	select {
	case term, ok := <-ch:
		return term, ok, true
	case <-time.After(o.killGrace):
		return procrun.Terminal{ExitCode: -1, Crashed: true}, false, true
	}
}

func (o *Orchestrator) failJob(run *model.BatchRun, job *model.Job, alert, detail string) {
	_ = model.TransitionJobStatus(job, model.StatusFailed)
	job.ErrorMessage = detail
	run.FailedCount++
	o.log(run, StreamInfo, alert)
	o.emit(Event{Kind: EventAlert, BatchID: run.ID, Severity: SeverityCritical, Message: alert, Job: snapshot(job)})
}

func failureDetail(term procrun.Terminal) string {
	msg := term.Message()
	if tail := lastLine(term.Stderr); tail != "" && term.Err == nil {
		msg += ": " + tail
	}
	return msg
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func (o *Orchestrator) finish(run *model.BatchRun, abandoned int, done chan struct{}) {
	summary := model.BatchSummary{
		BatchID:    run.ID,
		Speed:      run.SpeedFactor,
		OutputDir:  run.OutputDirectory,
		Total:      run.TotalCount,
		Completed:  run.CompletedCount,
		Failed:     run.FailedCount,
		Abandoned:  abandoned,
		StartedAt:  run.StartedAt,
		FinishedAt: o.now().UTC(),
		Jobs:       append([]model.Job(nil), run.Jobs...),
	}

	o.mu.Lock()
	o.state = StateCompleted
	o.summary = &summary
	o.mu.Unlock()

	if abandoned == 0 {
		o.log(run, StreamInfo, "All videos processed.")
	} else {
		o.log(run, StreamInfo, fmt.Sprintf("Batch stopped, %d videos not processed.", abandoned))
	}
	o.emit(Event{Kind: EventSummary, BatchID: run.ID, Summary: &summary, Completed: summary.Completed, Failed: summary.Failed, Total: summary.Total})

	o.mu.Lock()
	o.state = StateIdle
	o.cancel()
	o.mu.Unlock()
	close(done)
}

func (o *Orchestrator) log(run *model.BatchRun, stream, line string) {
	o.emit(Event{Kind: EventLog, BatchID: run.ID, Stream: stream, Message: line})
}

func (o *Orchestrator) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = o.now()
	}
	o.observer.OnEvent(e)
}

func snapshot(job *model.Job) *model.Job {
	c := *job
	return &c
}

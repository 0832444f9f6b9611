package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"vidspeed/internal/batch"
	"vidspeed/internal/config"
	"vidspeed/internal/history"
	"vidspeed/internal/inputs"
	"vidspeed/internal/logger"
	"vidspeed/internal/model"
	"vidspeed/internal/procrun"
	"vidspeed/internal/runstore"
)

const (
	logFileName   = "vidspeed.log"
	shutdownGrace = 2 * time.Second
)

// runReport is what --report and --json write.
type runReport struct {
	model.BatchSummary
	Rejected []inputs.Rejected `json:"rejected,omitempty"`
}

func runBatch(args []string) error {
	cfg := config.Load("")

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	jf := bindJobFlags(fs, cfg)
	stateDir := fs.String("state-dir", cfg.StateDir, "directory for the batch lock, history and log")
	reportPath := fs.String("report", "", "write the batch summary as JSON to this path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	progressUI := fs.Bool("progress", true, "live progress view when stdout is a terminal")
	noHistory := fs.Bool("no-history", false, "do not record the batch in the history ledger")
	verbose := fs.Bool("verbose", false, "print ffmpeg output lines")
	debug := fs.Bool("debug", false, "write ffmpeg output to the log file")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := jf.resolve(cfg)
	if err != nil {
		return err
	}
	cfg.StateDir = firstNonEmpty(*stateDir, cfg.StateDir)

	collected := inputs.Collect(fs.Args())
	if !*jsonOut {
		for _, r := range collected.Rejected {
			fmt.Fprintf(os.Stderr, "skipping %s: %s\n", r.Path, r.Reason)
		}
	}

	closeLog, err := openLogFile(cfg.StateDir, *debug)
	if err != nil {
		return err
	}
	defer closeLog()

	batchID := uuid.NewString()
	lock, err := runstore.AcquireBatchLock(cfg.StateDir, batchID)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	var ledger *history.Store
	if !*noHistory {
		ledger, err = history.Open(cfg.StateDir)
		if err != nil {
			logger.Warn.Printf("history disabled: %v", err)
			fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		} else {
			defer ledger.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := batch.Settings{
		BatchID:     batchID,
		SpeedFactor: cfg.Speed,
		OutputDir:   cfg.OutputDir,
		ToolPath:    cfg.FFmpegPath,
		Overlay:     jf.overlaySpec(cfg),
	}

	var summary model.BatchSummary
	if *progressUI && !*jsonOut && stdoutIsTTY() {
		summary, err = runWithView(ctx, collected.Files, settings)
	} else {
		var out io.Writer = os.Stdout
		if *jsonOut {
			out = io.Discard
		}
		summary, err = runPlain(ctx, collected.Files, settings, &linePrinter{out: out, verbose: *verbose})
	}
	if err != nil {
		return err
	}

	if ledger != nil {
		if err := ledger.RecordBatch(context.Background(), summary); err != nil {
			logger.Error.Printf("record batch %s: %v", summary.BatchID, err)
			fmt.Fprintf(os.Stderr, "warning: history not recorded: %v\n", err)
		}
	}

	report := runReport{BatchSummary: summary, Rejected: collected.Rejected}
	if p := strings.TrimSpace(*reportPath); p != "" {
		if err := runstore.WriteJSON(p, report); err != nil {
			return err
		}
	}
	if *jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printSummary(summary)
	}
	return summaryError(summary)
}

func runPlain(ctx context.Context, files []string, settings batch.Settings, printer *linePrinter) (model.BatchSummary, error) {
	orch := batch.New(procrun.New(), fanout{logObserver{}, printer})
	if _, err := orch.Start(ctx, files, settings); err != nil {
		return model.BatchSummary{}, err
	}
	return orch.Wait(context.Background())
}

func runWithView(ctx context.Context, files []string, settings batch.Settings) (model.BatchSummary, error) {
	var orch *batch.Orchestrator
	view := newRunModel(len(files), settings.SpeedFactor, func() {
		orch.Shutdown(shutdownGrace)
	})
	p := tea.NewProgram(view)
	orch = batch.New(procrun.New(), fanout{logObserver{}, programObserver{p: p}})

	uiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiDone <- err
	}()

	if _, err := orch.Start(ctx, files, settings); err != nil {
		p.Quit()
		<-uiDone
		return model.BatchSummary{}, err
	}

	uiErr := <-uiDone
	if uiErr != nil {
		logger.Warn.Printf("progress view stopped: %v", uiErr)
	}
	select {
	case <-orch.Done():
	default:
		orch.Shutdown(shutdownGrace)
	}
	return orch.Wait(context.Background())
}

func summaryError(s model.BatchSummary) error {
	switch {
	case s.Failed > 0:
		return fmt.Errorf("%d of %d jobs failed", s.Failed, s.Total)
	case s.Abandoned > 0:
		return fmt.Errorf("batch interrupted: %d of %d jobs not processed", s.Abandoned, s.Total)
	}
	return nil
}

func printSummary(s model.BatchSummary) {
	fmt.Println()
	fmt.Printf("batch_id: %s\n", s.BatchID)
	fmt.Printf("speed: %.2f\n", s.Speed)
	fmt.Printf("output_dir: %s\n", s.OutputDir)
	fmt.Printf("completed: %d/%d\n", s.Completed, s.Total)
	if s.Failed > 0 {
		fmt.Printf("failed: %d\n", s.Failed)
		for _, j := range s.Jobs {
			if j.Status == model.StatusFailed {
				fmt.Printf("  - %s: %s\n", filepath.Base(j.InputPath), j.ErrorMessage)
			}
		}
	}
	if s.Abandoned > 0 {
		fmt.Printf("not processed: %d\n", s.Abandoned)
	}
	fmt.Printf("elapsed: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
}

func openLogFile(stateDir string, debug bool) (func(), error) {
	if err := runstore.Mkdir(stateDir); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(stateDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Configure(f, debug)
	return func() {
		logger.Configure(io.Discard, false)
		_ = f.Close()
	}, nil
}

// fanout delivers each event to every observer in order.
type fanout []batch.Observer

func (f fanout) OnEvent(e batch.Event) {
	for _, o := range f {
		o.OnEvent(e)
	}
}

// logObserver mirrors batch events into the log file.
type logObserver struct{}

func (logObserver) OnEvent(e batch.Event) {
	switch e.Kind {
	case batch.EventLog:
		if e.Stream == batch.StreamInfo {
			logger.Info.Printf("batch=%s %s", e.BatchID, logger.SanitizeForLog(e.Message))
			return
		}
		logger.Debug.Printf("batch=%s %s: %s", e.BatchID, e.Stream, logger.SanitizeForLog(e.Message))
	case batch.EventAlert:
		if e.Severity == batch.SeverityCritical {
			logger.Error.Printf("batch=%s %s", e.BatchID, logger.SanitizeForLog(e.Message))
			return
		}
		logger.Warn.Printf("batch=%s %s", e.BatchID, logger.SanitizeForLog(e.Message))
	case batch.EventSummary:
		s := e.Summary
		logger.Info.Printf("batch=%s finished completed=%d failed=%d abandoned=%d total=%d", s.BatchID, s.Completed, s.Failed, s.Abandoned, s.Total)
	}
}

// linePrinter is the non-interactive view: the orchestrator's own log
// lines, plus ffmpeg output when verbose.
type linePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func (p *linePrinter) OnEvent(e batch.Event) {
	if e.Kind != batch.EventLog {
		return
	}
	if e.Stream != batch.StreamInfo && !p.verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, e.Message)
}

type programObserver struct {
	p *tea.Program
}

func (o programObserver) OnEvent(e batch.Event) {
	o.p.Send(batchEventMsg{event: e})
}

var errNoFiles = errors.New("no video files given")

func requireFiles(res inputs.Result) error {
	if len(res.Files) > 0 {
		return nil
	}
	if len(res.Rejected) > 0 {
		return fmt.Errorf("%w (%d rejected)", errNoFiles, len(res.Rejected))
	}
	return errNoFiles
}

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"vidspeed/internal/config"
	"vidspeed/internal/history"
)

var historyHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

func runHistory(args []string) error {
	cfg := config.Load("")

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	stateDir := fs.String("state-dir", cfg.StateDir, "state directory holding the history ledger")
	limit := fs.Int("limit", 20, "max batches to list (0 = all)")
	batchID := fs.String("batch", "", "show the jobs of one batch")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("--limit must be >= 0")
	}

	store, err := history.Open(strings.TrimSpace(*stateDir))
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if id := strings.TrimSpace(*batchID); id != "" {
		jobs, err := store.Jobs(ctx, id)
		if err != nil {
			return fmt.Errorf("batch %s: %w", id, err)
		}
		if *jsonOut {
			return printJSON(jobs)
		}
		fmt.Println(historyHeaderStyle.Render(fmt.Sprintf("%-4s %-10s %-32s %s", "#", "STATUS", "INPUT", "DETAIL")))
		for _, j := range jobs {
			detail := j.OutputPath
			if j.ErrorMessage != "" {
				detail = j.ErrorMessage
			}
			fmt.Printf("%-4d %-10s %-32s %s\n", j.Index, j.Status, filepath.Base(j.InputPath), detail)
		}
		return nil
	}

	records, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		if records == nil {
			records = []history.BatchRecord{}
		}
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no batches recorded yet")
		return nil
	}
	fmt.Println(historyHeaderStyle.Render(fmt.Sprintf("%-36s %-20s %6s %9s %6s  %s", "BATCH", "STARTED", "SPEED", "DONE", "FAILED", "OUTPUT")))
	for _, r := range records {
		fmt.Printf("%-36s %-20s %6.2f %9s %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Speed,
			fmt.Sprintf("%d/%d", r.Completed, r.Total),
			r.Failed,
			r.OutputDir,
		)
	}
	return nil
}

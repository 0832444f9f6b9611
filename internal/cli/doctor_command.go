package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vidspeed/internal/config"
	"vidspeed/internal/history"
	"vidspeed/internal/runstore"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

// doctorCheck marks advisory checks Optional; they never fail the run.
type doctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message"`
}

var (
	doctorOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	doctorFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	doctorWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func runDoctor(args []string) error {
	cfg := config.Load("")

	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	ffmpeg := fs.String("ffmpeg", cfg.FFmpegPath, "ffmpeg executable (name on PATH or path)")
	outputDir := fs.String("output-dir", cfg.OutputDir, "output directory to check")
	stateDir := fs.String("state-dir", cfg.StateDir, "state directory to check")
	font := fs.String("font", cfg.FontPath, "overlay font to check")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := doctor(*ffmpeg, *outputDir, *stateDir, *font)
	if *jsonOut {
		return printJSON(res)
	}

	for _, c := range res.Checks {
		status := doctorOKStyle.Render("ok")
		switch {
		case !c.OK && c.Optional:
			status = doctorWarnStyle.Render("warn")
		case !c.OK:
			status = doctorFailStyle.Render("fail")
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func doctor(ffmpeg, outputDir, stateDir, font string) doctorResult {
	checks := make([]doctorCheck, 0, 5)

	tool := strings.TrimSpace(ffmpeg)
	toolCheck := doctorCheck{Name: "dependency:ffmpeg"}
	if tool == "" {
		toolCheck.Message = "ffmpeg path is empty"
	} else if path, err := exec.LookPath(tool); err != nil {
		toolCheck.Message = tool + " not found or not executable"
	} else {
		toolCheck.OK = true
		toolCheck.Message = "found at " + path
	}
	checks = append(checks, toolCheck)

	outOK, outMsg := ensureWritableDir(outputDir)
	checks = append(checks, doctorCheck{Name: "directory:output", OK: outOK, Message: outMsg})

	stateOK, stateMsg := ensureWritableDir(stateDir)
	checks = append(checks, doctorCheck{Name: "directory:state", OK: stateOK, Message: stateMsg})

	if stateOK {
		histCheck := doctorCheck{Name: "history", OK: true, Message: "ledger ready"}
		if store, err := history.Open(stateDir); err != nil {
			histCheck.OK = false
			histCheck.Message = err.Error()
		} else {
			_ = store.Close()
		}
		checks = append(checks, histCheck)
	}

	fontCheck := doctorCheck{Name: "font:overlay", Optional: true}
	switch info, err := os.Stat(strings.TrimSpace(font)); {
	case strings.TrimSpace(font) == "":
		fontCheck.Message = "no default font found; pass --font to use --overlay"
	case err != nil:
		fontCheck.Message = font + " not found; overlays will be skipped"
	case !info.Mode().IsRegular():
		fontCheck.Message = font + " is not a regular file; overlays will be skipped"
	default:
		fontCheck.OK = true
		fontCheck.Message = font
	}
	checks = append(checks, fontCheck)

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "vidspeed-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}

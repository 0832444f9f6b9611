package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vidspeed/internal/batch"
	"vidspeed/internal/model"
)

const (
	maxViewLines     = 500
	defaultViewWidth = 80
	logViewHeight    = 12
)

var (
	runTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	runMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	runErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	runWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	runOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	runPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type batchEventMsg struct {
	event batch.Event
}

type cancelDoneMsg struct{}

type runModel struct {
	speed     float64
	total     int
	completed int
	failed    int
	current   string
	jobIndex  int
	jobPct    float64
	jobDetail string
	lastAlert string
	alertBad  bool

	lines    []string
	log      viewport.Model
	bar      progress.Model
	jobBar   progress.Model
	spin     spinner.Model
	width    int
	quitting bool
	done     bool
	summary  *model.BatchSummary
	cancel   func()
}

func newRunModel(total int, speed float64, cancel func()) runModel {
	return runModel{
		speed:  speed,
		total:  total,
		log:    viewport.New(defaultViewWidth, logViewHeight),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultViewWidth-4)),
		jobBar: progress.New(progress.WithSolidFill("62"), progress.WithWidth(defaultViewWidth-4)),
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:  defaultViewWidth,
		cancel: cancel,
	}
}

func (m runModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 20)
		m.log.Width = m.width - 4
		m.bar.Width = m.width - 4
		m.jobBar.Width = m.width - 4
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case batchEventMsg:
		return m.applyEvent(msg.event)
	case cancelDoneMsg:
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done {
				return m, tea.Quit
			}
			if m.quitting {
				return m, nil
			}
			m.quitting = true
			m.appendLine(runWarnStyle.Render("stopping: killing ffmpeg, remaining files will be skipped..."))
			return m, m.cancelCmd()
		case "up", "k", "down", "j", "pgup", "pgdown":
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m runModel) cancelCmd() tea.Cmd {
	cancel := m.cancel
	return func() tea.Msg {
		if cancel != nil {
			cancel()
		}
		return cancelDoneMsg{}
	}
}

func (m runModel) applyEvent(e batch.Event) (tea.Model, tea.Cmd) {
	switch e.Kind {
	case batch.EventLog:
		if e.Stream == batch.StreamInfo {
			m.appendLine(e.Message)
		}
	case batch.EventAlert:
		m.lastAlert = e.Message
		m.alertBad = e.Severity == batch.SeverityCritical
	case batch.EventJobStarted:
		if e.Job != nil {
			m.current = filepath.Base(e.Job.InputPath)
			m.jobIndex = e.Job.Index
		}
		m.jobPct = 0
		m.jobDetail = ""
	case batch.EventJobProgress:
		if p := e.Progress; p != nil {
			if p.Percent >= 0 {
				m.jobPct = p.Percent / 100
			}
			m.jobDetail = progressDetail(*p)
		}
	case batch.EventJobTerminal, batch.EventProgress:
		m.completed = e.Completed
		m.failed = e.Failed
		if e.Total > 0 {
			m.total = e.Total
		}
	case batch.EventSummary:
		m.done = true
		m.summary = e.Summary
		m.completed = e.Completed
		m.failed = e.Failed
		m.current = ""
		return m, tea.Quit
	}
	return m, nil
}

func (m *runModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxViewLines {
		m.lines = m.lines[len(m.lines)-maxViewLines:]
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

func (m runModel) processed() int {
	return m.completed + m.failed
}

func (m runModel) View() string {
	var b strings.Builder
	b.WriteString(runTitleStyle.Render(fmt.Sprintf("vidspeed x%.2f", m.speed)))
	b.WriteString("  ")
	b.WriteString(runMutedStyle.Render(fmt.Sprintf("%d/%d done", m.processed(), m.total)))
	if m.failed > 0 {
		b.WriteString("  ")
		b.WriteString(runErrorStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	b.WriteString("\n")

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.processed()) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n")

	switch {
	case m.done:
		b.WriteString(runOKStyle.Render("finished"))
	case m.current != "":
		b.WriteString(m.spin.View())
		b.WriteString(fmt.Sprintf(" (%d/%d) %s", m.jobIndex, m.total, m.current))
		b.WriteString("\n")
		b.WriteString(m.jobBar.ViewAs(m.jobPct))
		if m.jobDetail != "" {
			b.WriteString("\n")
			b.WriteString(runMutedStyle.Render(m.jobDetail))
		}
	default:
		b.WriteString(m.spin.View() + " starting")
	}
	b.WriteString("\n")

	if m.lastAlert != "" {
		style := runWarnStyle
		if m.alertBad {
			style = runErrorStyle
		}
		b.WriteString(style.Render(m.lastAlert))
		b.WriteString("\n")
	}
	b.WriteString(runPanelStyle.Render(m.log.View()))
	b.WriteString("\n")
	b.WriteString(runMutedStyle.Render("q: stop batch  ↑/↓: scroll log"))
	b.WriteString("\n")
	return b.String()
}

func progressDetail(p batch.JobProgress) string {
	parts := []string{"time " + formatClock(p.Time)}
	if p.FPS > 0 {
		parts = append(parts, fmt.Sprintf("%.0f fps", p.FPS))
	}
	if p.Speed != "" {
		parts = append(parts, "speed "+p.Speed)
	}
	if p.Bitrate != "" {
		parts = append(parts, p.Bitrate)
	}
	return strings.Join(parts, " · ")
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

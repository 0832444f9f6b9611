package batch

import (
	"time"

	"vidspeed/internal/model"
)

type EventKind string

const (
	EventLog         EventKind = "log"
	EventAlert       EventKind = "alert"
	EventJobStarted  EventKind = "job_started"
	EventJobProgress EventKind = "job_progress"
	EventJobTerminal EventKind = "job_terminal"
	EventProgress    EventKind = "progress"
	EventSummary     EventKind = "summary"
)

// Log streams. Stdout and stderr lines come straight from the tool.
const (
	StreamInfo   = "info"
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is what the orchestrator reports. Only the fields relevant to Kind
// are set; Job is a copy and safe to keep.
type Event struct {
	Kind     EventKind
	Time     time.Time
	BatchID  string
	Stream   string
	Severity Severity
	Message  string

	Job       *model.Job
	Progress  *JobProgress
	Completed int
	Failed    int
	Total     int
	Summary   *model.BatchSummary
}

// Observer receives events from the control goroutine and from output
// readers, so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

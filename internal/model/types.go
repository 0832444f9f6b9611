package model

import "time"

// Job is one input-to-output transcode within a batch.
type Job struct {
	Index        int       `json:"index"`
	InputPath    string    `json:"input_path"`
	OutputPath   string    `json:"output_path"`
	Status       JobStatus `json:"status"`
	ExitCode     int       `json:"exit_code"`
	Crashed      bool      `json:"crashed,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

// OverlaySpec configures the burned-in speed label.
type OverlaySpec struct {
	FontPath string `json:"font_path"`
	FontSize int    `json:"font_size"`
}

// BatchRun is the state of one pass over the queue.
type BatchRun struct {
	ID              string
	Jobs            []Job
	TotalCount      int
	CompletedCount  int
	FailedCount     int
	SpeedFactor     float64
	Overlay         *OverlaySpec
	OutputDirectory string
	ToolPath        string
	StartedAt       time.Time
}

// BatchSummary is the terminal report for a batch.
type BatchSummary struct {
	BatchID    string    `json:"batch_id"`
	Speed      float64   `json:"speed"`
	OutputDir  string    `json:"output_dir"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Abandoned  int       `json:"abandoned,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Jobs       []Job     `json:"jobs"`
}

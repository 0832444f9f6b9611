package batch

import (
	"errors"
	"fmt"
)

var (
	ErrBatchRunning      = errors.New("a batch is already running")
	ErrNoInputs          = errors.New("no input files")
	ErrOutputDir         = errors.New("invalid output directory")
	ErrToolMissing       = errors.New("transcoding tool path is empty")
	ErrToolNotExecutable = errors.New("transcoding tool is not executable")
	ErrSpeed             = errors.New("speed factor must be positive")
)

// PreconditionError means the batch never started and no job was created.
type PreconditionError struct {
	Reason error
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *PreconditionError) Unwrap() error {
	return e.Reason
}

func precondition(reason error, format string, args ...any) *PreconditionError {
	return &PreconditionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

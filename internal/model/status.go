package model

import "fmt"

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusSucceeded: true,
		StatusFailed:    true,
	},
	StatusSucceeded: {},
	StatusFailed:    {},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status JobStatus) bool {
	return status == StatusSucceeded || status == StatusFailed
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *Job, toStatus JobStatus) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (index=%d input=%s)", from, toStatus, job.Index, job.InputPath)
	}
	job.Status = toStatus
	return nil
}

package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{"", StatusPending},
		{StatusPending, StatusRunning},
		{StatusRunning, StatusSucceeded},
		{StatusRunning, StatusFailed},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{StatusPending, StatusSucceeded},
		{StatusPending, StatusFailed},
		{StatusSucceeded, StatusRunning},
		{StatusFailed, StatusPending},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionJobStatus_BlocksIllegalTransition(t *testing.T) {
	job := Job{
		Index:     1,
		InputPath: "/videos/a.mp4",
		Status:    StatusPending,
	}

	if err := TransitionJobStatus(&job, StatusSucceeded); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if job.Status != StatusPending {
		t.Fatalf("status changed on rejected transition: %s", job.Status)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusRunning) || IsTerminal(StatusPending) {
		t.Fatal("pending/running must not be terminal")
	}
	if !IsTerminal(StatusSucceeded) || !IsTerminal(StatusFailed) {
		t.Fatal("succeeded/failed must be terminal")
	}
}

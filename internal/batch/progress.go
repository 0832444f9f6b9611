package batch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reDuration = regexp.MustCompile(`\bDuration:\s*([0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)`)
	reTime     = regexp.MustCompile(`\btime=\s*([0-9]+):([0-9]{2}):([0-9]{2}(?:\.[0-9]+)?)`)
	reFrame    = regexp.MustCompile(`\bframe=\s*([0-9]+)`)
	reFPS      = regexp.MustCompile(`\bfps=\s*([0-9]+(?:\.[0-9]+)?)`)
	reFF       = regexp.MustCompile(`\bspeed=\s*([^\s]+)`)
	reFFBr     = regexp.MustCompile(`\bbitrate=\s*([0-9.]+)\s*([kKmMgG])bits/s`)
)

// JobProgress is one parsed ffmpeg status line. Percent is negative when
// the input duration has not been seen yet.
type JobProgress struct {
	Frame   int           `json:"frame,omitempty"`
	FPS     float64       `json:"fps,omitempty"`
	Time    time.Duration `json:"time"`
	Speed   string        `json:"speed,omitempty"`
	Bitrate string        `json:"bitrate,omitempty"`
	Percent float64       `json:"percent"`
}

// progressTracker follows one job's stderr. The output runs for
// inputDuration/speedFactor, so percent is measured against that.
type progressTracker struct {
	speedFactor   float64
	inputDuration time.Duration
}

func newProgressTracker(speedFactor float64) *progressTracker {
	return &progressTracker{speedFactor: speedFactor}
}

func (t *progressTracker) Handle(line string) (JobProgress, bool) {
	l := strings.TrimSpace(line)
	if l == "" {
		return JobProgress{}, false
	}
	if t.inputDuration == 0 {
		if m := reDuration.FindStringSubmatch(l); len(m) > 3 {
			t.inputDuration = clockDuration(m[1], m[2], m[3])
			return JobProgress{}, false
		}
	}

	m := reTime.FindStringSubmatch(l)
	if len(m) < 4 {
		return JobProgress{}, false
	}
	p := JobProgress{Time: clockDuration(m[1], m[2], m[3]), Percent: -1}
	if m := reFrame.FindStringSubmatch(l); len(m) > 1 {
		p.Frame, _ = strconv.Atoi(m[1])
	}
	if m := reFPS.FindStringSubmatch(l); len(m) > 1 {
		p.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reFF.FindStringSubmatch(l); len(m) > 1 && m[1] != "N/A" {
		p.Speed = m[1]
	}
	if m := reFFBr.FindStringSubmatch(l); len(m) > 2 {
		p.Bitrate = m[1] + strings.ToLower(m[2]) + "bit/s"
	}
	if t.inputDuration > 0 && t.speedFactor > 0 {
		expected := float64(t.inputDuration) / t.speedFactor
		p.Percent = min(100, 100*float64(p.Time)/expected)
	}
	return p, true
}

func clockDuration(h, m, s string) time.Duration {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.ParseFloat(s, 64)
	total := float64(hours*3600+minutes*60) + seconds
	return time.Duration(total * float64(time.Second))
}

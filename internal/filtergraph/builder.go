// Package filtergraph turns a speed factor and an optional overlay into the
// ffmpeg filter chains and argument vector for one job.
package filtergraph

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"vidspeed/internal/model"
	"vidspeed/internal/tempo"
)

// FilterPlan holds the per-job filter chains. Warnings describe degraded
// choices (e.g. a skipped overlay) and are never fatal.
type FilterPlan struct {
	VideoFilters []string
	AudioFilters []string
	Warnings     []string
}

// HasOverlay reports whether a drawtext stage was included.
func (p FilterPlan) HasOverlay() bool {
	for _, f := range p.VideoFilters {
		if strings.HasPrefix(f, "drawtext=") {
			return true
		}
	}
	return false
}

// Args renders the tool arguments for input -> output.
func (p FilterPlan) Args(inputPath, outputPath string) []string {
	args := make([]string, 0, 8)
	args = append(args, "-i", inputPath)
	args = append(args, "-vf", strings.Join(p.VideoFilters, ","))
	if len(p.AudioFilters) > 0 {
		args = append(args, "-af", strings.Join(p.AudioFilters, ","))
	}
	args = append(args, "-y", outputPath)
	return args
}

// Builder is the platform-aware plan builder. The zero value is not usable;
// use New or Build.
type Builder struct {
	goos string
	stat func(name string) (os.FileInfo, error)
}

// New returns a Builder for the running platform.
func New() *Builder {
	return &Builder{goos: runtime.GOOS, stat: os.Stat}
}

// Build is shorthand for New().Build.
func Build(speed float64, overlay *model.OverlaySpec, inputName string) FilterPlan {
	return New().Build(speed, overlay, inputName)
}

// Build composes the setpts stage, the optional drawtext stage and the atempo
// chain. It never fails; invalid inputs degrade to neutral stages.
func (b *Builder) Build(speed float64, overlay *model.OverlaySpec, inputName string) FilterPlan {
	plan := FilterPlan{}
	plan.VideoFilters = append(plan.VideoFilters, SetPTS(speed))

	if overlay != nil {
		if ok, reason := b.fontUsable(overlay.FontPath); ok {
			plan.VideoFilters = append(plan.VideoFilters, b.drawText(speed, *overlay))
		} else {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"Warning: Font file '%s' %s for overlay on '%s'. Skipping overlay.",
				overlay.FontPath, reason, inputName,
			))
		}
	}

	for _, stage := range tempo.Plan(speed) {
		plan.AudioFilters = append(plan.AudioFilters, ATempo(stage))
	}
	return plan
}

// SetPTS renders the timestamp-scale stage for speed.
func SetPTS(speed float64) string {
	factor := 1.0
	if speed > 0 {
		factor = 1.0 / speed
	}
	return "setpts=" + strconv.FormatFloat(factor, 'f', 4, 64) + "*PTS"
}

// ATempo renders one tempo stage.
func ATempo(stage float64) string {
	return "atempo=" + strconv.FormatFloat(stage, 'f', 4, 64)
}

// SpeedLabel formats speed the way it appears in output names and overlays.
func SpeedLabel(speed float64) string {
	return strconv.FormatFloat(speed, 'f', 2, 64)
}

func (b *Builder) fontUsable(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "not set"
	}
	info, err := b.stat(path)
	if err != nil {
		return false, "not found"
	}
	if !info.Mode().IsRegular() {
		return false, "is not a regular file"
	}
	return true, ""
}

func (b *Builder) drawText(speed float64, overlay model.OverlaySpec) string {
	text := EscapeLabel("x " + SpeedLabel(speed))
	return fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=%d:x=w-tw-10:y=h-th-10:shadowcolor=black:shadowx=2:shadowy=2:fontfile=\"%s\"",
		text, overlay.FontSize, b.fontPath(overlay.FontPath),
	)
}

// EscapeLabel escapes literal single quotes for the drawtext text option.
func EscapeLabel(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

// fontPath normalizes a font path for the filter graph. Windows drive
// colons collide with the option separator.
func (b *Builder) fontPath(path string) string {
	if b.goos != "windows" {
		return path
	}
	p := strings.ReplaceAll(path, `\`, "/")
	return strings.ReplaceAll(p, ":", `\\:`)
}

// CommandLine renders tool and args for display. Arguments with spaces or
// quotes are double-quoted; nothing is ever passed through a shell.
func CommandLine(tool string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{tool}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

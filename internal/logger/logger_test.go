package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "clip_x0.50.mp4", want: "clip_x0.50.mp4"},
		{name: "empty", input: "", want: ""},
		{name: "newline", input: "a\nINFO: forged", want: `a\nINFO: forged`},
		{name: "ffmpeg progress carriage return", input: "frame=1\rframe=2", want: `frame=1\rframe=2`},
		{name: "tab", input: "a\tb", want: `a\tb`},
		{name: "null", input: "a\x00b", want: `a\x00b`},
		{name: "ansi", input: "\x1b[31mred", want: `\x1b[31mred`},
		{name: "del", input: "x\x7f", want: `x\x7f`},
		{name: "unicode kept", input: "vidéo 中文.mkv", want: "vidéo 中文.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.want {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigureRoutesLevels(t *testing.T) {
	t.Cleanup(func() { Configure(&bytes.Buffer{}, false) })

	var buf bytes.Buffer
	Configure(&buf, false)
	Info.Print("hello")
	Debug.Print("hidden")
	Warn.Print("careful")

	out := buf.String()
	if !strings.Contains(out, "INFO: ") || !strings.Contains(out, "hello") {
		t.Fatalf("expected info line, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be discarded, got %q", out)
	}
	if !strings.Contains(out, "WARN: ") {
		t.Fatalf("expected warn line, got %q", out)
	}

	buf.Reset()
	Configure(&buf, true)
	Debug.Print("visible")
	if !strings.Contains(buf.String(), "DEBUG: ") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

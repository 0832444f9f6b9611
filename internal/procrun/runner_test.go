package procrun

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "tool")
	script := "#!/usr/bin/env bash\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func receive(t *testing.T, ch <-chan Terminal) (Terminal, bool) {
	t.Helper()
	select {
	case term, ok := <-ch:
		return term, ok
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for terminal event")
		return Terminal{}, false
	}
}

type lineRecorder struct {
	mu    sync.Mutex
	lines map[Stream][]string
}

func (r *lineRecorder) record(stream Stream, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines == nil {
		r.lines = map[Stream][]string{}
	}
	r.lines[stream] = append(r.lines[stream], line)
}

func (r *lineRecorder) get(stream Stream) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines[stream]...)
}

func TestLaunch_SuccessStreamsLines(t *testing.T) {
	exe := writeScript(t, `echo "out $1"
printf 'frame=1\rframe=2\n' >&2
exit 0`)

	rec := &lineRecorder{}
	r := New()
	term, ok := receive(t, r.Launch(context.Background(), exe, []string{"arg"}, rec.record))

	require.True(t, ok)
	assert.True(t, term.Succeeded(), term.Message())
	assert.Equal(t, 0, term.ExitCode)
	assert.Equal(t, []string{"out arg"}, rec.get(StreamStdout))
	assert.Equal(t, []string{"frame=1", "frame=2"}, rec.get(StreamStderr))
	assert.Equal(t, "frame=1\nframe=2", term.Stderr)
	assert.False(t, r.Active())
}

func TestLaunch_NonZeroExitIsNotACrash(t *testing.T) {
	exe := writeScript(t, `echo "bad input" >&2
exit 3`)

	term, ok := receive(t, New().Launch(context.Background(), exe, nil, nil))

	require.True(t, ok)
	assert.False(t, term.Succeeded())
	assert.False(t, term.Crashed)
	assert.Equal(t, 3, term.ExitCode)
	assert.Equal(t, "bad input", term.Stderr)
	assert.Equal(t, "exit code 3", term.Message())
}

func TestLaunch_SignalIsACrash(t *testing.T) {
	exe := writeScript(t, `kill -9 $$`)

	term, ok := receive(t, New().Launch(context.Background(), exe, nil, nil))

	require.True(t, ok)
	assert.True(t, term.Crashed)
	assert.False(t, term.Succeeded())
}

func TestLaunch_MissingExecutableIsSyntheticCrash(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-tool")

	term, ok := receive(t, New().Launch(context.Background(), missing, nil, nil))

	require.True(t, ok)
	assert.True(t, term.Crashed)
	assert.Equal(t, -1, term.ExitCode)
	require.Error(t, term.Err)
	assert.Contains(t, term.Message(), "start")
}

func TestLaunch_RelaunchKillsPreviousAndDropsItsTerminal(t *testing.T) {
	slow := writeScript(t, `exec sleep 30`)
	fast := writeScript(t, `exit 0`)

	r := New()
	first := r.Launch(context.Background(), slow, nil, nil)
	time.Sleep(100 * time.Millisecond)
	second := r.Launch(context.Background(), fast, nil, nil)

	_, ok := receive(t, first)
	assert.False(t, ok, "superseded launch must not deliver a terminal event")

	term, ok := receive(t, second)
	require.True(t, ok)
	assert.True(t, term.Succeeded())
}

func TestLaunch_ContextCancelKillsProcess(t *testing.T) {
	exe := writeScript(t, `exec sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())

	ch := New().Launch(ctx, exe, nil, nil)
	time.Sleep(100 * time.Millisecond)
	cancel()

	term, ok := receive(t, ch)
	require.True(t, ok)
	assert.True(t, term.Crashed)
}

func TestStop_KillsActiveProcess(t *testing.T) {
	exe := writeScript(t, `exec sleep 30`)
	r := New()
	ch := r.Launch(context.Background(), exe, nil, nil)
	time.Sleep(100 * time.Millisecond)

	assert.True(t, r.Stop(2*time.Second))
	term, ok := receive(t, ch)
	require.True(t, ok)
	assert.True(t, term.Crashed)
	assert.True(t, New().Stop(time.Millisecond), "idle runner stops trivially")
}

func TestSplitByNewlineOrCR(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{name: "newline", data: "abc\ndef", advance: 4, token: "abc"},
		{name: "carriage return", data: "abc\rdef", advance: 4, token: "abc"},
		{name: "leading separator", data: "\nabc", advance: 1, token: ""},
		{name: "need more data", data: "abc", advance: 0, token: ""},
		{name: "eof flushes", data: "abc", atEOF: true, advance: 3, token: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, token, err := splitByNewlineOrCR([]byte(tt.data), tt.atEOF)
			require.NoError(t, err)
			assert.Equal(t, tt.advance, advance)
			assert.Equal(t, tt.token, string(token))
		})
	}
}

func TestAppendLimitedKeepsRecentTail(t *testing.T) {
	var out, errs strings.Builder
	line := strings.Repeat("x", 99)
	for i := 0; i < 500; i++ {
		appendLimited(&out, &errs, StreamStderr, line)
	}
	appendLimited(&out, &errs, StreamStderr, "last line")

	assert.Zero(t, out.Len())
	assert.LessOrEqual(t, errs.Len(), maxTail+len(line)+1)
	assert.True(t, strings.HasSuffix(errs.String(), "last line\n"))
}

package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Info = log.New(io.Discard, "INFO: ", logFlags)
	Error = log.New(os.Stderr, "ERROR: ", logFlags)
	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
	Warn = log.New(os.Stderr, "WARN: ", logFlags)
}

// Configure points every level at w. Debug output stays discarded unless
// debug is set.
func Configure(w io.Writer, debug bool) {
	Info.SetOutput(w)
	Error.SetOutput(w)
	Warn.SetOutput(w)
	if debug {
		Debug.SetOutput(w)
	} else {
		Debug.SetOutput(io.Discard)
	}
}

package logging

import (
	"io"

	"github.com/go-kit/log"
)

// NewJSONLogger creates a logger that writes JSON-serialized records
// directly to the given writer, at the debug level.
//
// It bypasses the global backend and is mostly useful in tests.
func NewJSONLogger(w io.Writer) *Logger {
	return &Logger{
		logger: log.NewJSONLogger(w),
		level:  LevelDebug,
	}
}

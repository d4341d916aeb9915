// Package obslog sets up the zerolog logger for code embedding mac-core
// and for its tests, mirroring the console-writer-plus-level setup each
// of the teacher's cmd entrypoints performs in main.
package obslog

import (
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New builds a logger writing human-readable output to out at level,
// parsed case-insensitively (debug, info, warn, error); an unrecognized
// level falls back to info.
func New(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// WithRequest returns a child logger with reqID attached as the
// "request_id" field, so every line logged while servicing one
// MLME/MCPS request carries the same correlation id as its eventual
// Confirm/Indication. A Nil id is returned unmodified.
func WithRequest(l zerolog.Logger, reqID uuid.UUID) zerolog.Logger {
	if reqID == uuid.Nil {
		return l
	}
	return l.With().Str("request_id", reqID.String()).Logger()
}

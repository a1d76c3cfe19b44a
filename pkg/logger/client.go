package logger

import (
	"io"
	"log/slog"
)

// Client builds the logger used by the chat front ends. The console only
// shows errors unless debug is set, since it shares the terminal with the
// conversation. The file keeps JSON records from Info up (Debug with debug).
//
// A nil console gives a file-only logger, which the TUI needs so nothing is
// drawn over its screen. A nil file gives a console-only logger.
func Client(console, file io.Writer, debug bool) *slog.Logger {
	var loggers []*slog.Logger

	if console != nil {
		level := slog.LevelError
		if debug {
			level = slog.LevelDebug
		}
		loggers = append(loggers, New(WithWriter(console), WithPretty(true), WithLevel(level)))
	}

	if file != nil {
		loggers = append(loggers, New(WithWriter(file), WithJSON(true), WithDebug(debug)))
	}

	switch len(loggers) {
	case 0:
		return Nop()
	case 1:
		return loggers[0]
	default:
		return Multi(loggers...)
	}
}

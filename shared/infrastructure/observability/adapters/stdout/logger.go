package stdout

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"mangadownloader/shared/application/ports"
)

// Logger implements ports.Logger on top of zerolog.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a JSON logger writing to w. With pretty set, output goes
// through zerolog's ConsoleWriter for local development.
func NewLogger(w io.Writer, level string, pretty bool) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return &Logger{
		zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.write(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.write(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.write(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.write(l.zl.Error(), msg, fields)
}

// WithFields returns a new Logger with the given fields on every entry
func (l *Logger) WithFields(fields map[string]interface{}) ports.Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) write(event *zerolog.Event, msg string, fields []interface{}) {
	if event == nil {
		return
	}
	event.Fields(fieldsToMap(fields)).Msg(msg)
}

// fieldsToMap converts variadic key-value pairs to a map. A trailing key
// without a value is kept with an empty value.
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(fields)/2)

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		if i+1 < len(fields) {
			result[key] = fields[i+1]
		} else {
			result[key] = ""
		}
	}

	return result
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// TraceAdapter adapts zerolog.Logger to pgx's tracelog.Logger interface
type TraceAdapter struct {
	logger zerolog.Logger
}

// NewTraceAdapter creates a new adapter
func NewTraceAdapter(logger zerolog.Logger) *TraceAdapter {
	return &TraceAdapter{logger: logger}
}

// Log implements tracelog.Logger
func (l *TraceAdapter) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	var event *zerolog.Event

	switch level {
	case tracelog.LogLevelTrace:
		event = l.logger.Trace()
	case tracelog.LogLevelDebug:
		event = l.logger.Debug()
	case tracelog.LogLevelInfo:
		event = l.logger.Info()
	case tracelog.LogLevelWarn:
		event = l.logger.Warn()
	case tracelog.LogLevelError:
		event = l.logger.Error()
	default:
		event = l.logger.Info()
	}

	for key, value := range data {
		event = event.Interface(key, value)
	}

	event.Msg(msg)
}

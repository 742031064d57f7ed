package observability

import (
	"context"
	"log/slog"
)

// Slog adapts a *slog.Logger to Logger.
type Slog struct {
	l *slog.Logger
}

// NewSlog wraps l; a nil logger uses slog.Default.
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{l: l}
}

func (s *Slog) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *Slog) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *Slog) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *Slog) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *Slog) With(fields ...Field) Logger {
	return &Slog{l: s.l.With(attrs(fields)...)}
}

func (s *Slog) log(level slog.Level, msg string, fields []Field) {
	s.l.Log(context.Background(), level, msg, attrs(fields)...)
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value().(type) {
		case error:
			out = append(out, slog.String(f.Key(), v.Error()))
		case nil:
			out = append(out, slog.Any(f.Key(), nil))
		default:
			out = append(out, slog.Any(f.Key(), v))
		}
	}
	return out
}

var _ Logger = (*Slog)(nil)

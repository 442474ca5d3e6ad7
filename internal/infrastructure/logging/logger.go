package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "homysync"

// redacted replaces the value of any attribute named in secretKeys.
const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach the output,
// matched case-insensitively.
var secretKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"password":      {},
	"authorization": {},
}

// Logger is a slog.Logger carrying the service and version fields.
//
// Attributes named token, access_token, password or authorization are
// written as "[redacted]" at any nesting depth.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to cfg.Output ("stdout" or "stderr").
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version attached to every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return newWithWriter(output, cfg, version)
}

func newWithWriter(output io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler.WithAttrs([]slog.Attr{
			slog.String("service", serviceName),
			slog.String("version", version),
		})),
	}
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, secret := secretKeys[strings.ToLower(a.Key)]; secret {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps debug, info, warn(ing) and error to a slog.Level.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child Logger tagged with component=name, e.g.
// "channel", "mirror" or "journal".
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

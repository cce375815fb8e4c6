package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a structured logger scoped to one component. The component
// path is carried as the zap logger name, so nested loggers read
// "relay.ws" rather than repeating a field.
type Logger struct {
	*zap.SugaredLogger
}

// Options configures New.
type Options struct {
	// File is the log file path. Empty logs to stdout.
	File string

	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" or "console".
	Format string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a logger for the named service. When opts.File is set the
// output goes to a size-rotated file, since the dashboard owns the
// terminal.
func New(service string, opts Options) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(parseLevel(opts.Level)))
	zapLogger := zap.New(core, zap.AddCaller())

	return &Logger{SugaredLogger: zapLogger.Sugar().With("service", service)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger for a component, appended to the
// parent's name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}

// WithSubject returns a logger carrying the user and workspace ids.
func (l *Logger) WithSubject(userID, workspaceID string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With("user_id", userID, "workspace_id", workspaceID)}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

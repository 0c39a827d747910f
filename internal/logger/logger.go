package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Tags used to keep the failure classes of a trading cycle apart in the log stream.
const (
	TagSourceFailure = "source-failure"
	TagDecodeFailure = "decode-failure"
	TagRiskDenied    = "risk-denied"
	TagDispatch      = "dispatch-failure"
)

// Output formats understood by SetFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	levelVar   slog.LevelVar
	loggerMu   sync.RWMutex
	baseLogger *slog.Logger
	out        io.Writer = os.Stdout
	format               = FormatText
)

func init() {
	levelVar.Set(slog.LevelInfo)
	baseLogger = newLogger(out, format)
}

func newLogger(w io.Writer, f string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: &levelVar}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput replaces the writer of the process logger, keeping the format.
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
	baseLogger = newLogger(out, format)
}

// SetFormat switches between "text" (default) and "json" records.
func SetFormat(f string) {
	f = strings.ToLower(strings.TrimSpace(f))
	if f != FormatJSON {
		f = FormatText
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	format = f
	baseLogger = newLogger(out, format)
}

// SetLevel accepts debug/info/warn/error; anything else falls back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func activeLogger() *slog.Logger {
	loggerMu.RLock()
	l := baseLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if baseLogger == nil {
		baseLogger = newLogger(out, format)
	}
	return baseLogger
}

func Debugf(format string, v ...any) {
	activeLogger().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	activeLogger().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	activeLogger().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	activeLogger().Error(fmt.Sprintf(format, v...))
}

// Taggedf logs at warn level with a "class" attribute so failure kinds can be filtered.
func Taggedf(tag, format string, v ...any) {
	activeLogger().Warn(fmt.Sprintf(format, v...), slog.String("class", tag))
}

// TaggedErrorf is Taggedf at error level, for failures the caller must act on.
func TaggedErrorf(tag, format string, v ...any) {
	activeLogger().Error(fmt.Sprintf(format, v...), slog.String("class", tag))
}

// InfoBlock logs every non-empty line of block at info level.
func InfoBlock(block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		Infof("%s", strings.TrimRight(line, " \t"))
	}
}

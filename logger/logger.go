// Package logger provides the process-wide structured loggers used by every
// storage subsystem that logs (buffer, redolog, txn, lockmgr, engine). It is the one package-level singleton the engine keeps —
// everything else is threaded explicitly through an engine.Handle.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the debug-level logger used for verbose subsystem tracing.
	Logger *logrus.Logger
	// InfoLogger carries informational and notice-level messages.
	InfoLogger *logrus.Logger
	// ErrorLogger carries warnings, errors and fatal messages.
	ErrorLogger *logrus.Logger
)

// Config controls where the three loggers write and at what level.
type Config struct {
	InfoLogPath  string
	ErrorLogPath string
	Level        string
}

// callerFormatter renders "[HH:MM:SS TZ YYYY/MM/DD] [LEVL] (file:func:line) msg",
// the level cut to its first four letters.
type callerFormatter struct{}

func (f *callerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("15:04:05 MST 2006/01/02")

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	msg := fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller(), entry.Message)
	return []byte(msg), nil
}

// caller walks past logrus's own frames to find the first frame outside
// this package and outside logrus itself.
func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen") || strings.Contains(file, "logger.go") {
			continue
		}
		fn := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), fn, line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Init sets up Logger, InfoLogger and ErrorLogger. Safe to call more than
// once (e.g. when engine.Config is reloaded); later calls replace the
// previous loggers outright.
func Init(cfg Config) error {
	formatter := &callerFormatter{}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	Logger.SetLevel(parseLevel(cfg.Level))

	InfoLogger = logrus.New()
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(parseLevel(cfg.Level))

	ErrorLogger = logrus.New()
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(parseLevel(cfg.Level))

	infoOut, err := openOrFallback(cfg.InfoLogPath, os.Stdout)
	if err != nil {
		InfoLogger.Warnf("falling back to stdout: %v", err)
	}
	InfoLogger.SetOutput(infoOut)

	errOut, err := openOrFallback(cfg.ErrorLogPath, os.Stderr)
	if err != nil {
		ErrorLogger.Warnf("falling back to stderr: %v", err)
	}
	ErrorLogger.SetOutput(errOut)

	Logger.SetOutput(InfoLogger.Out)
	return nil
}

func openOrFallback(path string, fallback *os.File) (io.Writer, error) {
	if path == "" {
		return fallback, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fallback, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fallback, err
	}
	return io.MultiWriter(fallback, f), nil
}

func init() {
	// Usable before Init is called, e.g. from package-level test setup.
	_ = Init(Config{Level: "info"})
}

func Info(args ...interface{})                  { InfoLogger.Info(args...) }
func Infof(format string, args ...interface{})  { InfoLogger.Infof(format, args...) }
func Debug(args ...interface{})                 { Logger.Debug(args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Warn(args ...interface{})                  { ErrorLogger.Warn(args...) }
func Warnf(format string, args ...interface{})  { ErrorLogger.Warnf(format, args...) }
func Error(args ...interface{})                 { ErrorLogger.Error(args...) }
func Errorf(format string, args ...interface{}) { ErrorLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                 { ErrorLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { ErrorLogger.Fatalf(format, args...) }

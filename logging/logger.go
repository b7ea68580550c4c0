package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	current   Config
	loggersMu sync.Mutex
)

// Configure sets the configuration used by loggers created afterwards and
// re-applies level, caller reporting, formatter and output to the ones
// that already exist.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	current = cfg
	for _, entry := range loggers {
		apply(entry.Logger, cfg)
	}
}

// SetLevel changes the level of every logger. Unknown levels are ignored.
func SetLevel(levelStr string) {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	current.Level = levelStr
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	apply(logger, current)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

func apply(logger *logrus.Logger, cfg Config) {
	// Configure Level
	levelStr := "info"
	if env := os.Getenv("VIEWSYNC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configure Caller Reporting
	logger.SetReportCaller(os.Getenv("VIEWSYNC_LOG_CALLER") == "true" || cfg.ReportCaller)

	// Configure Output
	var out io.Writer = os.Stderr
	switch cfg.Output {
	case "discard":
		out = io.Discard
	case "file":
		if file, err := openLogFile(cfg.File.Path); err == nil {
			out = file
		} else {
			logger.Warnf("Failed to open log file %s: %v", cfg.File.Path, err)
		}
	}
	logger.SetOutput(out)

	// Configure Formatter
	switch cfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	case "default":
		logger.SetFormatter(&TextFormatter{Config: cfg.Format})
	default:
		// "auto": structured JSON for collectors, text for people.
		if out == os.Stderr && !isTerminal(os.Stderr) {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logger.SetFormatter(&TextFormatter{Config: cfg.Format})
		}
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func openLogFile(path string) (*os.File, error) {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

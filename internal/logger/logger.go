// Package logger owns the process log. Packages that log a lot take a
// component logger once; the package-level helpers write untagged lines
// through the same root.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitsync/internal/constants"
)

// Logger is the root set up by Init. It is nil until then and every helper
// tolerates that.
var Logger *log.Logger

var discard = New(io.Discard, log.FatalLevel)

type Config struct {
	Debug     bool
	ConfigDir string
}

// File is where Init writes the log
func (c Config) File() string {
	return filepath.Join(c.ConfigDir, "logs", constants.AppName+".log")
}

// Level is warn, or debug when Debug is set
func (c Config) Level() log.Level {
	if c.Debug {
		return log.DebugLevel
	}
	return log.WarnLevel
}

// Init points the root at a size-rotated file. In debug mode lines are also
// echoed to stderr with their call site.
func Init(cfg Config) error {
	path := cfg.File()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var sink io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	if cfg.Debug {
		sink = io.MultiWriter(os.Stderr, sink)
	}

	root := New(sink, cfg.Level())
	root.SetReportCaller(cfg.Debug)
	Logger = root
	return nil
}

// New builds a logger with the habitsync prefix and timestamps
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
}

func root() *log.Logger {
	if Logger == nil {
		return discard
	}
	return Logger
}

// Component returns a child of the root tagged component=name. Before Init
// it discards everything.
func Component(name string) *log.Logger {
	return root().With("component", name)
}

func Debug(msg string, keyvals ...interface{}) {
	l := root()
	l.Helper()
	l.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	l := root()
	l.Helper()
	l.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	l := root()
	l.Helper()
	l.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	l := root()
	l.Helper()
	l.Error(msg, keyvals...)
}

// Package logger builds the zerolog logger shared by all components.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0o664
)

// Build collects logger options.
type Build struct {
	writer io.Writer
	path   string
	level  string
}

// Log is a constructed logger and the file it writes to, if any.
type Log struct {
	Logger  zerolog.Logger
	LogFile *os.File
}

// New starts a builder. Without options the logger writes to stderr, which
// keeps stdout free for the stdio transport.
func New() *Build {
	return &Build{}
}

// FromPath appends log lines to the file at path.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// FromBuffer writes log lines to w.
func (b *Build) FromBuffer(w io.Writer) *Build {
	b.writer = w
	return b
}

// Level sets the minimum level by name ("debug", "info", ...). Empty means info.
func (b *Build) Level(level string) *Build {
	b.level = level
	return b
}

// Make builds the logger. A path takes precedence over a buffer.
func (b *Build) Make() (*Log, error) {
	level := zerolog.InfoLevel
	if b.level != "" {
		l, err := zerolog.ParseLevel(b.level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	out := &Log{}
	var w io.Writer = os.Stderr
	if b.writer != nil {
		w = b.writer
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		out.LogFile = f
		w = zerolog.SyncWriter(f)
	}
	out.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return out, nil
}

// Close closes the log file, if any.
func (l *Log) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

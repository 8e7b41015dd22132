// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry is this module's ambient logging setup: a thin,
// leveled facade over chzyer/logex (the structured logger the teacher's
// dependency tree already carries, transitively, via chzyer/readline),
// plus simple size-based log file rotation for the long-running
// timelineserver process.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/logex"
)

// Logger is a named, leveled logger. The zero value is not usable; use
// New.
type Logger struct {
	component string
	out       io.Writer
}

// New returns a Logger that tags every line with component.
func New(component string) *Logger {
	return &Logger{component: component, out: os.Stderr}
}

// SetOutput redirects where this logger's lines are written (and, via
// logex, anything it forwards to the standard log package).
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
	logex.SetOutput(w)
}

func (l *Logger) prefixed(format string, v ...interface{}) string {
	return fmt.Sprintf("[%s] %s", l.component, fmt.Sprintf(format, v...))
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, v ...interface{}) {
	logex.Debug(l.prefixed(format, v...))
}

// Infof logs at info level.
func (l *Logger) Infof(format string, v ...interface{}) {
	logex.Info(l.prefixed(format, v...))
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, v ...interface{}) {
	logex.Warn(l.prefixed(format, v...))
}

// Errorf logs at error level. err, if non-nil, is appended via logex's
// own error formatting.
func (l *Logger) Errorf(err error, format string, v ...interface{}) {
	if err != nil {
		logex.Error(l.prefixed(format, v...), err)
		return
	}
	logex.Error(l.prefixed(format, v...))
}

// RotatingFile is an io.WriteCloser that rotates the underlying file to
// a ".1" suffix once it exceeds MaxBytes, the same coarse rotation
// scheme a long-running timelineserver process needs and nothing in
// the example pack's dependency tree provides out of the box.
type RotatingFile struct {
	Path     string
	MaxBytes int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenRotatingFile opens (creating if necessary) the file at path for
// appending, rotating it immediately if it is already over maxBytes.
func OpenRotatingFile(path string, maxBytes int64) (*RotatingFile, error) {
	r := &RotatingFile{Path: path, MaxBytes: maxBytes}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.size = info.Size()
	if r.size >= r.MaxBytes {
		return r.rotate()
	}
	return nil
}

func (r *RotatingFile) rotate() error {
	r.f.Close()
	if err := os.Rename(r.Path, r.Path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

// Write implements io.Writer, rotating first if the write would exceed
// MaxBytes.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size+int64(len(p)) > r.MaxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

// Close implements io.Closer.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

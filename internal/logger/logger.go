package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Levels, lowest first.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

var level atomic.Int32

func init() {
	level.Store(LevelInfo)
}

// SetLevel accepts DEBUG, INFO, WARN or ERROR; anything else means INFO.
func SetLevel(name string) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		level.Store(LevelDebug)
	case "WARN", "WARNING":
		level.Store(LevelWarn)
	case "ERROR":
		level.Store(LevelError)
	default:
		level.Store(LevelInfo)
	}
}

// Debugf logs only at DEBUG level.
func Debugf(format string, args ...interface{}) {
	logAt(LevelDebug, "DEBUG: ", format, args...)
}

// Warnf logs with a WARN tag.
func Warnf(format string, args ...interface{}) {
	logAt(LevelWarn, "WARN: ", format, args...)
}

// Errorf logs with an ERROR tag.
func Errorf(format string, args ...interface{}) {
	logAt(LevelError, "ERROR: ", format, args...)
}

func logAt(l int32, tag, format string, args ...interface{}) {
	if l < level.Load() {
		return
	}
	// Depth 3 keeps Lshortfile pointing at the caller of Debugf/Warnf/Errorf.
	log.Output(3, tag+fmt.Sprintf(format, args...))
}

// Rotator is an io.Writer over Filename that starts a fresh file once MaxSize bytes
// would be exceeded. Up to MaxBackups numbered copies are kept, Filename.1 newest.
type Rotator struct {
	Filename   string
	MaxSize    int64
	MaxBackups int

	mu      sync.Mutex
	out     *os.File
	written int64
}

// Setup sends the standard logger to stdout and a rotating file. If the file cannot
// be opened, logging stays on stdout.
func Setup(filename string, maxSizeMB int64, maxBackups int) {
	r := &Rotator{Filename: filename, MaxSize: maxSizeMB << 20, MaxBackups: maxBackups}
	if err := r.open(); err != nil {
		log.Printf("WARN: log file %s unavailable, logging to stdout only: %v", filename, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, r))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.out == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	// A single oversized line still goes into an empty file.
	if r.MaxSize > 0 && r.written > 0 && r.written+int64(len(p)) > r.MaxSize {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
		if r.out == nil {
			if err := r.open(); err != nil {
				return 0, err
			}
		}
	}

	n, err := r.out.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *Rotator) open() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.out, r.written = f, info.Size()
	return nil
}

func (r *Rotator) backup(i int) string {
	return fmt.Sprintf("%s.%d", r.Filename, i)
}

// rotate shifts name.N-1 -> name.N down to name -> name.1, dropping the oldest.
func (r *Rotator) rotate() error {
	r.out.Close()
	r.out = nil

	if r.MaxBackups <= 0 {
		if err := os.Remove(r.Filename); err != nil && !os.IsNotExist(err) {
			return err
		}
		return r.open()
	}
	for i := r.MaxBackups - 1; i >= 1; i-- {
		// Gaps in the backup sequence are expected on young installs.
		if err := os.Rename(r.backup(i), r.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(r.Filename, r.backup(1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return r.open()
}

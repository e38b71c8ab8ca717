// Package logging provides the structured logger relaysuite's workers share,
// backed by logrus the way docker-compose's components log through it
// (e.g. ecs/pkg/compose/normalize.go's logrus.Warn calls). Every worker type
// — file server, file client, binary proxy, HTTP proxy — takes a Logger
// instead of reaching for the log package directly, so tests can swap in a
// no-op or recording implementation.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface relaysuite components depend on.
// WithField returns a derived logger carrying that field on every
// subsequent call, mirroring logrus.Entry's chaining.
type Logger interface {
	WithField(key string, value interface{}) Logger
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// logrusLogger adapts *logrus.Entry to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger writing to w in text format, at the given level name
// ("debug", "info", "warn", "error"; unrecognized values default to info).
func New(w io.Writer, level string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(parseLevel(level))
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Default returns a Logger writing to stderr at info level.
func Default() Logger {
	return New(os.Stderr, "info")
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// tee fans out every call to a set of Loggers, so a per-client file logger
// can be combined with the shared stderr logger without either caller
// needing to know about the other.
type tee struct {
	loggers []Logger
}

// Tee returns a Logger that forwards every call to each of loggers.
func Tee(loggers ...Logger) Logger {
	return &tee{loggers: loggers}
}

func (t *tee) WithField(key string, value interface{}) Logger {
	next := make([]Logger, len(t.loggers))
	for i, l := range t.loggers {
		next[i] = l.WithField(key, value)
	}
	return &tee{loggers: next}
}

func (t *tee) Debugf(format string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Debugf(format, args...)
	}
}

func (t *tee) Infof(format string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Infof(format, args...)
	}
}

func (t *tee) Warnf(format string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Warnf(format, args...)
	}
}

func (t *tee) Errorf(format string, args ...interface{}) {
	for _, l := range t.loggers {
		l.Errorf(format, args...)
	}
}

// PerClientFile opens (creating if needed) an append-only log file under dir
// named client_<clientID>.log, and returns a Logger writing to it. Concurrent callers
// each get their own *os.File handle; writes within a single Logger are
// serialized by logrus's own internal mutex, and file position is managed by
// the OS since the file is opened O_APPEND.
func PerClientFile(dir, clientID, level string) (Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	path := dir + "/client_" + sanitizeFileName(clientID) + ".log"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(&syncWriter{w: f}, level).WithField("client", clientID), f, nil
}

func sanitizeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}

// syncWriter guards writes to an underlying io.Writer with a mutex, since
// os.File writes from multiple goroutines can interleave.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

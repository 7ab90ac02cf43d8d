package logging

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DedupLogger suppresses repeated log lines with the same key for a TTL
// window. It replaces ad hoc module-level dedup maps: the cache is scoped to
// the instance, safe for concurrent use, and entries expire on their own.
type DedupLogger struct {
	logger *logrus.Logger
	ttl    time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewDedupLogger creates a DedupLogger around the given logger
func NewDedupLogger(logger *logrus.Logger, ttl time.Duration) *DedupLogger {
	return &DedupLogger{
		logger: logger,
		ttl:    ttl,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// allow reports whether a line with this key may be emitted, recording it if
// so. Expired entries are pruned opportunistically.
func (d *DedupLogger) allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return false
	}

	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}

	d.seen[key] = now
	return true
}

// Warnf logs a warning unless the same key was logged within the TTL
func (d *DedupLogger) Warnf(key, format string, args ...interface{}) {
	if d.allow(key) {
		d.logger.Warnf(format, args...)
	}
}

// Errorf logs an error unless the same key was logged within the TTL
func (d *DedupLogger) Errorf(key, format string, args ...interface{}) {
	if d.allow(key) {
		d.logger.Errorf(format, args...)
	}
}

// Package audit records pipeline lifecycle events as an append-only,
// timestamped line log. The log is the durable record of what happened to
// a run, independent of artifact survival: entries are never rewritten or
// deleted, and a partial log from a crashed run is still valid and
// diagnostic. Writers open the file in append mode, write one line, and
// close it; no locking discipline beyond OS append atomicity is assumed
// for the single-process caller.
package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event enumerates the lifecycle event kinds a run can record.
type Event string

const (
	EventStart     Event = "START"
	EventAttestOK  Event = "ATTEST ok"
	EventAttestErr Event = "ATTEST fail"
	EventStep      Event = "STEP"
	EventWarn      Event = "WARN"
	EventEnd       Event = "END"
)

// Entry is one immutable audit record. Detail carries event-specific
// fields (digest, output path, error text) already rendered as text.
type Entry struct {
	Time   time.Time
	Event  Event
	PlanID string
	Detail string
}

// Line renders the entry in the on-disk format: RFC3339 UTC timestamp,
// event kind, plan id, then detail.
func (e Entry) Line() string {
	parts := []string{e.Time.UTC().Format(time.RFC3339), string(e.Event), e.PlanID}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, " | ")
}

// Log is the recording interface injected into the pipeline. File-backed
// in production; in-memory in tests.
type Log interface {
	Append(entry Entry) error
}

// FileLog appends entries to a single shared audit file across runs.
type FileLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Option customizes a FileLog during construction.
type Option func(*FileLog)

// WithClock overrides the timestamp source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *FileLog) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewFileLog creates the audit log at path, ensuring its directory exists.
func NewFileLog(path string, opts ...Option) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: ensure log dir: %w", err)
	}
	log := &FileLog{path: path, now: time.Now}
	for _, opt := range opts {
		opt(log)
	}
	return log, nil
}

// Path returns the file backing this log.
func (l *FileLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one newline-terminated line. The entry timestamp is
// stamped here if the caller left it zero, so lines always carry the time
// they were durably recorded.
func (l *FileLog) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.Time.IsZero() {
		entry.Time = l.now()
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(entry.Line() + "\n"); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	return nil
}

// Tail returns up to maxLines of the most recent log lines and the total
// number of lines in the log.
func (l *FileLog) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// MemoryLog captures entries in memory for tests.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// Append records the entry, stamping the current time if unset.
func (l *MemoryLog) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

package errorlog

import (
	"encoding/json"
	"fanshare/models"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	LevelError = "ERROR"
	LevelWarn  = "WARN"
	LevelFatal = "FATAL"

	defaultCapacity = 100
	maxStackDepth   = 10
)

// Recorder keeps the most recent failures in memory, oldest evicted first.
type Recorder struct {
	mu       sync.RWMutex
	logs     []*models.ErrorLog
	byID     map[int]*models.ErrorLog
	capacity int
	nextID   int
}

// Default is the process-wide recorder used by handlers and the bootstrap.
var Default = New(defaultCapacity)

// New returns a recorder holding at most capacity entries. A non-positive capacity
// falls back to 100.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{
		logs:     make([]*models.ErrorLog, 0, capacity),
		byID:     make(map[int]*models.ErrorLog),
		capacity: capacity,
	}
}

// Record stores an entry and returns its ID.
func (r *Recorder) Record(level, source, message string, err error, fields map[string]interface{}) int {
	// skip runtime.Callers, stack and Record
	stack := stack(3)

	var raw json.RawMessage
	if len(fields) > 0 {
		if data, mErr := json.Marshal(fields); mErr == nil {
			raw = data
		}
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry := &models.ErrorLog{
		ID:        r.nextID,
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
		Detail:    detail,
		Stack:     stack,
		Fields:    raw,
	}
	r.logs = append(r.logs, entry)
	r.byID[entry.ID] = entry
	r.evictLocked()
	return entry.ID
}

// List returns the stored entries, latest first.
func (r *Recorder) List() []*models.ErrorLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.logs)
	out := make([]*models.ErrorLog, total)
	for i := 0; i < total; i++ {
		out[i] = r.logs[total-1-i]
	}
	return out
}

// Get returns the entry with the given ID, or nil once it has been evicted.
func (r *Recorder) Get(id int) *models.ErrorLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Len reports how many entries are stored.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs)
}

// Clear drops every entry and restarts IDs at 1.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = make([]*models.ErrorLog, 0, r.capacity)
	r.byID = make(map[int]*models.ErrorLog)
	r.nextID = 0
}

// SetCapacity resizes the recorder, evicting the oldest entries if it shrinks.
func (r *Recorder) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity = capacity
	r.evictLocked()
}

func (r *Recorder) evictLocked() {
	for len(r.logs) > r.capacity {
		delete(r.byID, r.logs[0].ID)
		r.logs[0] = nil
		r.logs = r.logs[1:]
	}
}

func stack(skip int) string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

// Error records err at ERROR level on the default recorder.
func Error(source, message string, err error) {
	Default.Record(LevelError, source, message, err, nil)
}

// ErrorWithContext records err with structured context on the default recorder.
func ErrorWithContext(source, message string, err error, fields map[string]interface{}) {
	Default.Record(LevelError, source, message, err, fields)
}

// Warn records a warning on the default recorder.
func Warn(source, message string, err error) {
	Default.Record(LevelWarn, source, message, err, nil)
}

// Fatal records a failure that stops the process.
func Fatal(source, message string, err error, fields map[string]interface{}) {
	Default.Record(LevelFatal, source, message, err, fields)
}

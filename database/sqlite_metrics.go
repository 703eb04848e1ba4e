package database

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

// StatementKind classifies a SQL statement by its effect.
type StatementKind int

const (
	StatementOther  StatementKind = iota // PRAGMA, BEGIN, COMMIT and anything unrecognized
	StatementRead                        // SELECT, WITH, EXPLAIN
	StatementWrite                       // INSERT, UPDATE, DELETE, REPLACE
	StatementSchema                      // CREATE, ALTER, DROP
)

func (k StatementKind) String() string {
	switch k {
	case StatementRead:
		return "read"
	case StatementWrite:
		return "write"
	case StatementSchema:
		return "schema"
	default:
		return "other"
	}
}

// ClassifyStatement looks at the first keyword of sql, skipping leading whitespace,
// comments and parentheses.
func ClassifyStatement(sql string) StatementKind {
	keyword := strings.ToUpper(firstKeyword(sql))
	switch keyword {
	case "SELECT", "WITH", "EXPLAIN", "VALUES":
		return StatementRead
	case "INSERT", "UPDATE", "DELETE", "REPLACE", "UPSERT":
		return StatementWrite
	case "CREATE", "ALTER", "DROP":
		return StatementSchema
	default:
		return StatementOther
	}
}

func firstKeyword(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				return s
			}
			return s[:end]
		}
	}
}

// StatementCounter counts statements traced through a handle's GORM logger.
// All methods are safe for concurrent use.
type StatementCounter struct {
	total  atomic.Uint64
	reads  atomic.Uint64
	writes atomic.Uint64
	schema atomic.Uint64
	failed atomic.Uint64
	busy   atomic.Uint64
	locked atomic.Uint64
}

// StatementStats is a point-in-time copy of a StatementCounter.
type StatementStats struct {
	Total  uint64 `json:"total"`
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`
	Schema uint64 `json:"schema"`
	Failed uint64 `json:"failed"`
	Busy   uint64 `json:"sqlite_busy"`
	Locked uint64 `json:"sqlite_locked"`
}

// Mutations is the number of statements that changed data or schema.
func (s StatementStats) Mutations() uint64 {
	return s.Writes + s.Schema
}

// Sub returns the counts accumulated since prev.
func (s StatementStats) Sub(prev StatementStats) StatementStats {
	return StatementStats{
		Total:  s.Total - prev.Total,
		Reads:  s.Reads - prev.Reads,
		Writes: s.Writes - prev.Writes,
		Schema: s.Schema - prev.Schema,
		Failed: s.Failed - prev.Failed,
		Busy:   s.Busy - prev.Busy,
		Locked: s.Locked - prev.Locked,
	}
}

// Observe records one executed statement and its outcome.
func (c *StatementCounter) Observe(sql string, err error) {
	c.total.Add(1)
	switch ClassifyStatement(sql) {
	case StatementRead:
		c.reads.Add(1)
	case StatementWrite:
		c.writes.Add(1)
	case StatementSchema:
		c.schema.Add(1)
	}
	if err == nil {
		return
	}
	c.failed.Add(1)
	busy, locked := classifySQLiteError(err)
	if busy {
		c.busy.Add(1)
	}
	if locked {
		c.locked.Add(1)
	}
}

// Snapshot copies the current counts.
func (c *StatementCounter) Snapshot() StatementStats {
	return StatementStats{
		Total:  c.total.Load(),
		Reads:  c.reads.Load(),
		Writes: c.writes.Load(),
		Schema: c.schema.Load(),
		Failed: c.failed.Load(),
		Busy:   c.busy.Load(),
		Locked: c.locked.Load(),
	}
}

func classifySQLiteError(err error) (busy bool, locked bool) {
	if err == nil {
		return false, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, false
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy timeout") {
		busy = true
	}
	if strings.Contains(msg, "sqlite_locked") || strings.Contains(msg, "database table is locked") {
		locked = true
	}

	return busy, locked
}

package models

import (
	"encoding/json"
	"time"
)

// ErrorLog is a failure kept in memory for the error-log API. It is never persisted.
type ErrorLog struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Source    string          `json:"source"`
	Message   string          `json:"message"`
	Detail    string          `json:"detail,omitempty"`
	Stack     string          `json:"stack,omitempty"`
	Fields    json.RawMessage `json:"fields,omitempty"`
}

// HasFields reports whether structured fields were attached.
func (e *ErrorLog) HasFields() bool {
	return len(e.Fields) > 0
}

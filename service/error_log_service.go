package service

import (
	"fanshare/errorlog"
	"fanshare/models"
)

// ErrorLogService exposes the in-memory error ring
type ErrorLogService struct {
	recorder *errorlog.Recorder
}

// NewErrorLogService constructs an error log service
func NewErrorLogService(recorder *errorlog.Recorder) *ErrorLogService {
	return &ErrorLogService{recorder: recorder}
}

// List returns recorded failures, latest first
func (s *ErrorLogService) List() []*models.ErrorLog {
	return s.recorder.List()
}

// Get retrieves a single entry by ID
func (s *ErrorLogService) Get(id int) *models.ErrorLog {
	return s.recorder.Get(id)
}

// Clear removes all entries
func (s *ErrorLogService) Clear() {
	s.recorder.Clear()
}

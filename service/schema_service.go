package service

import (
	"context"
	"fanshare/database"
	"fanshare/migrate"
	"fmt"
	"sync"
	"time"
)

// PendingUnit is a migration unit that has not been applied yet.
type PendingUnit struct {
	Version     string `json:"version"`
	Description string `json:"description"`
}

// SchemaStatus describes the schema of the open database relative to this build.
type SchemaStatus struct {
	Current  string          `json:"current"`
	Target   string          `json:"target"`
	UpToDate bool            `json:"up_to_date"`
	State    string          `json:"state"`
	Pending  []PendingUnit   `json:"pending"`
	LastRun  *migrate.Result `json:"last_run,omitempty"`
}

// Health is the liveness summary served by /api/health.
type Health struct {
	Database      bool   `json:"database"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SchemaService reports migration state. It never applies migrations; that happens once
// at startup before the HTTP server exists.
type SchemaService struct {
	handle *database.Handle
	runner *migrate.Runner

	mu      sync.RWMutex
	lastRun *migrate.Result
}

// NewSchemaService constructs a schema service
func NewSchemaService(handle *database.Handle, runner *migrate.Runner) *SchemaService {
	return &SchemaService{handle: handle, runner: runner}
}

// RecordRun keeps the result of the startup migration for status reports.
func (s *SchemaService) RecordRun(res migrate.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &res
}

// Status reads the ledger and lists pending units without writing.
func (s *SchemaService) Status(ctx context.Context) (*SchemaStatus, error) {
	current, pending, err := s.runner.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema status: %w", err)
	}

	status := &SchemaStatus{
		Current:  current,
		Target:   s.runner.Target(),
		UpToDate: len(pending) == 0,
		State:    s.runner.State().String(),
		Pending:  make([]PendingUnit, 0, len(pending)),
	}
	for _, u := range pending {
		status.Pending = append(status.Pending, PendingUnit{Version: u.Version, Description: u.Description})
	}

	s.mu.RLock()
	status.LastRun = s.lastRun
	s.mu.RUnlock()
	return status, nil
}

// Health pings the database and reads the recorded schema version.
func (s *SchemaService) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if !s.handle.Ping(ctx) {
		return Health{Error: "database unreachable"}
	}
	current, _, err := s.runner.Status(ctx)
	if err != nil {
		return Health{Database: true, Error: err.Error()}
	}
	return Health{Database: true, SchemaVersion: current}
}

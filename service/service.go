package service

import (
	"fanshare/database"
	"fanshare/errorlog"
	"fanshare/migrate"
)

// Services is the global service container
type Services struct {
	Schema    *SchemaService
	Settings  *SettingsService
	Metrics   *MetricsService
	ErrorLogs *ErrorLogService
}

// GlobalServices is the global service instance
var GlobalServices *Services

// New builds the service container for an open, migrated database.
func New(handle *database.Handle, runner *migrate.Runner, recorder *errorlog.Recorder) *Services {
	return &Services{
		Schema:    NewSchemaService(handle, runner),
		Settings:  NewSettingsService(database.NewSettingsStore(handle.DB)),
		Metrics:   NewMetricsService(handle.Counter),
		ErrorLogs: NewErrorLogService(recorder),
	}
}

// InitServices initializes all services
func InitServices(handle *database.Handle, runner *migrate.Runner, recorder *errorlog.Recorder) {
	GlobalServices = New(handle, runner, recorder)
}

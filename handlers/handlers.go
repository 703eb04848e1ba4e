package handlers

import (
	"bytes"
	"fanshare/errorlog"
	"fanshare/service"
	"fanshare/version"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the operational API under /api.
func RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		// Health and schema routes
		api.GET("/health", HealthCheck)
		api.GET("/schema", GetSchemaStatus)

		// Settings routes
		api.GET("/settings", ListSettings)
		api.GET("/settings/:key", GetSetting)
		api.PUT("/settings/:key", PutSetting)
		api.DELETE("/settings/:key", DeleteSetting)

		// Metrics routes
		api.GET("/metrics", GetMetrics)
		api.GET("/metrics/prometheus", GetPrometheusMetrics)

		// Error log routes
		api.GET("/error-logs", GetErrorLogs)
		api.GET("/error-logs/:id", GetErrorLogDetail)
		api.DELETE("/error-logs", ClearErrorLogs)
	}
}

// HealthCheck reports database reachability and the recorded schema version
func HealthCheck(c *gin.Context) {
	health := service.GlobalServices.Schema.Health(c.Request.Context())

	data := gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().Unix(),
		"db_healthy":     health.Database,
		"schema_version": health.SchemaVersion,
		"build":          version.Info(),
	}
	if !health.Database || health.Error != "" {
		data["status"] = "degraded"
		data["error"] = health.Error
		writeJSON(c, http.StatusServiceUnavailable, CodeUnavailable, "Service degraded", data)
		return
	}
	writeOK(c, data)
}

// GetSchemaStatus reports the current and target schema versions
func GetSchemaStatus(c *gin.Context) {
	status, err := service.GlobalServices.Schema.Status(c.Request.Context())
	if err != nil {
		errorlog.Error("handlers.schema", "Failed to read schema status", err)
		writeError(c, http.StatusInternalServerError, CodeInternal, "Failed to read schema status", err.Error())
		return
	}
	writeOK(c, status)
}

// GetMetrics returns statement counters and runtime stats
func GetMetrics(c *gin.Context) {
	writeOK(c, gin.H{
		"timestamp": time.Now().Unix(),
		"metrics":   service.GlobalServices.Metrics.Snapshot(),
		"error_logs": gin.H{
			"total": len(service.GlobalServices.ErrorLogs.List()),
		},
	})
}

func promLabelEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// GetPrometheusMetrics writes the same counters in the Prometheus text format.
func GetPrometheusMetrics(c *gin.Context) {
	m := service.GlobalServices.Metrics.Snapshot()
	build := version.Info()

	var buf bytes.Buffer
	buf.WriteString("# HELP fanshare_build_info Build information.\n")
	buf.WriteString("# TYPE fanshare_build_info gauge\n")
	fmt.Fprintf(
		&buf,
		"fanshare_build_info{version=\"%s\",commit=\"%s\",build_time=\"%s\"} 1\n",
		promLabelEscape(build.Version),
		promLabelEscape(build.Commit),
		promLabelEscape(build.BuildTime),
	)

	counter := func(name, help string, value uint64) {
		fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
	}
	gauge := func(name, help string, value uint64) {
		fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, value)
	}

	counter("fanshare_sqlite_statements_total", "Total SQL statements executed.", m.Statements.Total)
	counter("fanshare_sqlite_reads_total", "Read statements executed.", m.Statements.Reads)
	counter("fanshare_sqlite_writes_total", "Data-changing statements executed.", m.Statements.Writes)
	counter("fanshare_sqlite_schema_changes_total", "Schema-changing statements executed.", m.Statements.Schema)
	counter("fanshare_sqlite_failed_total", "Statements that returned an error.", m.Statements.Failed)
	counter("fanshare_sqlite_busy_errors_total", "Total SQLite busy errors observed.", m.Statements.Busy)
	counter("fanshare_sqlite_locked_errors_total", "Total SQLite locked errors observed.", m.Statements.Locked)
	gauge("fanshare_go_goroutines", "Number of goroutines.", uint64(m.Runtime.Goroutines))
	gauge("fanshare_memory_heap_alloc_megabytes", "Heap allocation in MiB.", m.Runtime.HeapAllocMB)
	counter("fanshare_gc_runs_total", "Number of completed GC cycles.", uint64(m.Runtime.NumGC))

	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// GetErrorLogs returns recent error logs
func GetErrorLogs(c *gin.Context) {
	writeOK(c, service.GlobalServices.ErrorLogs.List())
}

// GetErrorLogDetail returns a single error log
func GetErrorLogDetail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid error log id", c.Param("id"))
		return
	}
	entry := service.GlobalServices.ErrorLogs.Get(id)
	if entry == nil {
		writeError(c, http.StatusNotFound, CodeNotFound, "Error log not found", id)
		return
	}
	writeOK(c, entry)
}

// ClearErrorLogs wipes error logs
func ClearErrorLogs(c *gin.Context) {
	service.GlobalServices.ErrorLogs.Clear()
	writeOK(c, gin.H{"cleared": true})
}

package handlers

import (
	"errors"
	"fanshare/errorlog"
	"fanshare/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type settingRequest struct {
	Value *string `json:"value" binding:"required"`
}

func ListSettings(c *gin.Context) {
	settings, err := service.GlobalServices.Settings.List(c.Request.Context())
	if err != nil {
		settingsError(c, "Failed to list settings", err)
		return
	}
	writeOK(c, settings)
}

func GetSetting(c *gin.Context) {
	key := c.Param("key")
	value, err := service.GlobalServices.Settings.Get(c.Request.Context(), key)
	if err != nil {
		settingsError(c, "Failed to get setting", err)
		return
	}
	writeOK(c, gin.H{"key": key, "value": value})
}

func PutSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request", err.Error())
		return
	}

	key := c.Param("key")
	if err := service.GlobalServices.Settings.Set(c.Request.Context(), key, *req.Value); err != nil {
		settingsError(c, "Failed to save setting", err)
		return
	}
	writeOK(c, gin.H{"key": key, "value": *req.Value})
}

func DeleteSetting(c *gin.Context) {
	key := c.Param("key")
	if err := service.GlobalServices.Settings.Delete(c.Request.Context(), key); err != nil {
		settingsError(c, "Failed to delete setting", err)
		return
	}
	writeOK(c, gin.H{"key": key, "deleted": true})
}

// settingsError maps service errors onto the response envelope. Storage failures are
// also kept in the error log.
func settingsError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, service.ErrSettingNotFound):
		writeError(c, http.StatusNotFound, CodeNotFound, message, err.Error())
	case errors.Is(err, service.ErrSettingReadOnly):
		writeError(c, http.StatusForbidden, CodeForbidden, message, err.Error())
	case errors.Is(err, service.ErrInvalidSetting):
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, message, err.Error())
	default:
		errorlog.ErrorWithContext("handlers.settings", message, err, map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		writeError(c, http.StatusInternalServerError, CodeInternal, message, err.Error())
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const (
	CodeOK             = "OK"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeForbidden      = "FORBIDDEN"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInternal       = "INTERNAL_ERROR"
)

func writeJSON(c *gin.Context, status int, code, message string, data any) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func writeOK(c *gin.Context, data any) {
	writeJSON(c, http.StatusOK, CodeOK, "OK", data)
}

// writeError keeps the envelope shape for failures; detail lands in data.detail.
func writeError(c *gin.Context, status int, code, message string, detail any) {
	payload := gin.H{}
	if detail != nil {
		payload["detail"] = detail
	}
	writeJSON(c, status, code, message, payload)
}

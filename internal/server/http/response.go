package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the machine-readable part of a failed reply.
type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func success(c echo.Context, statusCode int, data any, message string) error {
	return c.JSON(statusCode, Response{
		Success: true,
		Code:    statusCode,
		Message: message,
		Data:    data,
	})
}

func failure(c echo.Context, statusCode int, errorCode, details string) error {
	return c.JSON(statusCode, Response{
		Success: false,
		Code:    statusCode,
		Message: http.StatusText(statusCode),
		Error:   &ErrorInfo{Code: errorCode, Details: details},
	})
}

package utils

import (
	"github.com/labstack/echo/v4"
)

// Response is the success envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Respond writes the success envelope with the given status code.
func Respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

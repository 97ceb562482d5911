package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the success envelope of the JSON API.
type APIResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// NewAPIResponse builds an envelope; Success is derived from the status code.
func NewAPIResponse(statusCode int, data any, message string) APIResponse {
	if message == "" {
		message = "Success"
	}
	return APIResponse{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < http.StatusBadRequest,
	}
}

// JSON writes data wrapped in an APIResponse.
func JSON(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, NewAPIResponse(statusCode, data, message))
}

// OK writes a 200 envelope.
func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, data, "")
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data any, message string) {
	JSON(c, http.StatusCreated, data, message)
}

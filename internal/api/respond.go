package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolgrid/timetable-back/internal/apperr"
)

// ErrorResponse is the error body every endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	body := ErrorResponse{Error: err.Error(), Details: apperr.Details(err)}
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		body = ErrorResponse{Error: "internal error"}
	}
	c.JSON(status, body)
}

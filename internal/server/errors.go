package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"worklog/internal/auth"
	"worklog/internal/lifecycle"
)

// statusFor maps domain errors to an HTTP status and a message safe to show users.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation), errors.Is(err, auth.ErrInvalidUser):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, lifecycle.ErrNotFoundOrUnauthorized):
		return http.StatusNotFound, "Task not found or not authorized"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.Is(err, lifecycle.ErrUnauthorized), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to perform this action"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "User already exists"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// respondError logs err and writes the mapped status with a generic envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed",
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("error", err.Error()))

	c.JSON(status, gin.H{"status": "error", "message": message})
}

// respondBadRequest reports a malformed request body or parameter.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": message})
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"status": "success"}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

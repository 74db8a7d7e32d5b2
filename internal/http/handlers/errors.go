package handlers

import (
	"net/http"

	"travelapp/internal/domain"
	"travelapp/internal/http/middleware"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	resp := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	reqID := middleware.GetRequestID(c)
	if reqID != "" {
		c.JSON(status, gin.H{
			"error":      resp.Error,
			"code":       resp.Code,
			"details":    resp.Details,
			"request_id": reqID,
			"message":    message,
		})
		return
	}
	c.JSON(status, resp)
}

// domainStatus maps domain errors to an HTTP status, error code and the
// message safe to show the caller.
func domainStatus(err error) (int, string, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, "validation_error", err.Error()
	case domain.IsAuthentication(err):
		return http.StatusUnauthorized, "unauthorized", err.Error()
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found", err.Error()
	case domain.IsConflict(err):
		return http.StatusConflict, "conflict", err.Error()
	case domain.IsGateway(err):
		return http.StatusInternalServerError, "gateway_error", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// RespondDomainError maps domain errors to HTTP responses. Internal errors
// are logged and replaced by a generic message.
func RespondDomainError(c *gin.Context, err error) {
	status, code, msg := domainStatus(err)
	if status == http.StatusInternalServerError {
		utils.LogError(middleware.GetRequestID(c), "http", c.FullPath(), err)
	}
	respondError(c, status, code, msg, nil)
}

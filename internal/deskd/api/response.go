package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

func errorBody(code, message, details string) models.ErrorResponse {
	return models.ErrorResponse{
		Code:    code,
		Error:   message,
		Details: details,
		Time:    time.Now().UTC(),
	}
}

// abortError writes an error response and stops the handler chain
func abortError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, errorBody(code, message, details))
}

// badRequest reports a boundary validation failure
func badRequest(c *gin.Context, message string, err error) {
	details := ""
	if err != nil {
		details = models.ConvertValidatorErrors(err).Error()
	}
	abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, message, details)
}

// respondError maps an error from the store, storage or engine onto the
// error taxonomy.
func (s *Server) respondError(c *gin.Context, message string, err error) {
	code := models.CodeFor(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrStorage):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error(message)
		abortError(c, status, code, message, "")
		return
	}
	abortError(c, status, code, message, err.Error())
}

package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/server/datasource"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInternal           = "internal error"
	msgTooManyAttempts    = "too many failed attempts, try again later"
	msgTimeout            = "request timed out, try again"
	msgSourceUnavailable  = "Could not connect to the data source. Please try again later."
)

// publicError maps err to the status and message shown to the caller. Only
// the generic categories leave the process; details are logged.
func publicError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, common.ErrSessionInvalid):
		return http.StatusUnauthorized, common.ErrSessionInvalid.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, msgTooManyAttempts
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, datasource.ErrUnknownDataset):
		return http.StatusNotFound, "unknown dataset"
	case errors.Is(err, datasource.ErrUnavailable):
		return http.StatusBadGateway, msgSourceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgTimeout
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (s *Server) fail(c *gin.Context, mode renderMode, err error) {
	status, msg := publicError(err)
	ctx := c.Request.Context()

	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error(ctx, "request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	case status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		s.logger.Info(ctx, "request rejected", "path", c.Request.URL.Path, "status", status, "reason", err)
	}

	if mode == renderHTML {
		c.HTML(status, "login.html", gin.H{"Error": msg})
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

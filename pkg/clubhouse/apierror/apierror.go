// Package apierror translates store failures into HTTP responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
)

// Status maps a store error to an HTTP status code
func Status(err error) int {
	switch {
	// Checked first: inconsistent errors also match ErrNotFound.
	case errors.Is(err, store.ErrInconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes {"success": false, "error": msg} with the status for err and
// records err on the gin context. Internal failures get a generic message.
func Abort(c *gin.Context, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// BadRequest writes a 400 with msg
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

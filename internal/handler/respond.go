package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"techrepair-server/internal/store"
)

// writeStoreError maps a store failure to a response with a short message and
// a stable machine-readable code. Unknown failures become a bare 500.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found", "code": "not_found"})
	case errors.Is(err, store.ErrExpired):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or expired code", "code": "expired"})
	case errors.Is(err, store.ErrAlreadyBound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A technician is already connected", "code": "already_bound"})
	case errors.Is(err, store.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already completed", "code": "invalid_state"})
	case errors.Is(err, store.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error", "code": "server_error"})
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/organize"
	"github.com/mailhaven/core/internal/services"
	"github.com/mailhaven/core/internal/store"
)

// respondOK writes the standard success envelope
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondBadRequest writes a validation error with details
func respondBadRequest(c *gin.Context, message string, err error) {
	body := gin.H{
		"code":    "VALIDATION_ERROR",
		"message": message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondServiceError maps known service errors onto HTTP statuses; anything
// unrecognized becomes a 500
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCredentialNotFound),
		errors.Is(err, store.ErrMessageNotFound),
		errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, organize.ErrInvalidAction),
		errors.Is(err, organize.ErrInvalidBulkTarget),
		errors.Is(err, services.ErrInvalidSendInput),
		errors.Is(err, services.ErrInvalidFolder),
		errors.Is(err, services.ErrInvalidCredentialData):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, services.ErrCredentialAlreadyExists):
		respondError(c, http.StatusConflict, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, services.ErrSyncInProgress):
		respondError(c, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

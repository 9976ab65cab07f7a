package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api/models"
	"market-clearing/internal/clearing"
)

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// clearingStatus maps a clearing failure to an HTTP status and error code.
func clearingStatus(err error) (int, string) {
	switch clearing.KindOf(err) {
	case clearing.KindValidation:
		return http.StatusUnprocessableEntity, "CLEARING_REJECTED"
	case clearing.KindConfiguration:
		return http.StatusBadRequest, "INVALID_CONFIG"
	case clearing.KindNumerical:
		return http.StatusUnprocessableEntity, "NUMERICAL_FAILURE"
	}
	if errors.Is(err, clearing.ErrUnknownArea) {
		return http.StatusNotFound, "UNKNOWN_AREA"
	}
	return http.StatusInternalServerError, "CLEARING_ERROR"
}

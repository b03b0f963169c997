package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

// respondError maps application error codes onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal error", Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case model.CodeValidationError:
		status = http.StatusBadRequest
	case model.CodePermissionDenied:
		status = http.StatusForbidden
	case model.CodeNotFound:
		status = http.StatusNotFound
	case model.CodeConversationOver:
		status = http.StatusGone
	case model.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, model.ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

package handler

import (
	"errors"
	"net/http"

	"almoheat/internal/ledger"
	"almoheat/internal/logger"
	"almoheat/internal/middleware"
	"almoheat/internal/service"
	"almoheat/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const codeNotFound = "NOT_FOUND"

// writeError maps service errors onto the response envelope. Anything
// unrecognised is a 500 whose cause is logged, not returned.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *ledger.ValidationError
		stockErr      *ledger.StockInsufficientError
		stateErr      *ledger.StateError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, validationErr.Code(), validationErr.Error(),
			[]middleware.FieldError{{Field: validationErr.Field, Message: validationErr.Message}}))
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, stockErr.Code(), stockErr.Error(), stockErr))
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, stateErr.Code(), stateErr.Error(), nil))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorWithCode(http.StatusNotFound, codeNotFound, err.Error(), nil))
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "internal server error"))
	}
}

// bindError answers a request body or query that failed gin binding.
func bindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, ledger.CodeValidation, "Request validation failed", details))
		return
	}
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, ledger.CodeValidation, "Invalid request payload: "+err.Error(), nil))
}

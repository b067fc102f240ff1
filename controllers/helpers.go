package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Kariqs/amexan-storefront/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgInvalidInput     = "invalid input"
	msgInvalidProductID = "Invalid product ID"
	msgInvalidOrderID   = "Invalid order ID"
	msgProductNotFound  = "Product not found"
	msgOrderNotFound    = "Order not found"
)

func sendJSONResponse(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"message": message})
}

func respondWithError(ctx *gin.Context, statusCode int, message string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	ctx.JSON(statusCode, gin.H{
		"message": message,
		"error":   errMsg,
	})
}

// respondWithServiceError maps the core error taxonomy onto HTTP statuses.
// Server-side faults only expose their category.
func respondWithServiceError(ctx *gin.Context, logger *zap.Logger, message string, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondWithError(ctx, http.StatusBadRequest, message, err)
	case errors.Is(err, services.ErrForbidden):
		respondWithError(ctx, http.StatusForbidden, message, err)
	case errors.Is(err, services.ErrNotFound):
		respondWithError(ctx, http.StatusNotFound, message, err)
	case errors.Is(err, services.ErrProcessing):
		respondWithError(ctx, http.StatusUnprocessableEntity, message, err)
	default:
		logger.Error(message, zap.String("path", ctx.Request.URL.Path), zap.Error(err))
		ctx.Error(err)
		category := errors.New("internal error")
		if errors.Is(err, services.ErrStorage) {
			category = services.ErrStorage
		}
		respondWithError(ctx, http.StatusInternalServerError, message, category)
	}
}

func parseID(ctx *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

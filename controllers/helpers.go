package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// respondError maps service errors onto the API envelope. notFoundCode names the missing resource.
func respondError(ctx *gin.Context, err error, notFoundCode int) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40020, verr.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, notFoundCode, "not found")
	case errors.Is(err, services.ErrPactMismatch):
		utils.Error(ctx, http.StatusBadRequest, 40040, "check-in does not belong to pact")
	default:
		// recorded by the access logger
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "storage unavailable")
	}
}

// parseID reads a positive numeric path parameter.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

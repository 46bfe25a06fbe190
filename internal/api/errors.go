package api

import (
	"errors"
	"net/http"

	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusOf(kind raffle.Kind) int {
	switch kind {
	case raffle.KindTiming, raffle.KindSequencing:
		return http.StatusConflict
	case raffle.KindAuthorization:
		return http.StatusForbidden
	case raffle.KindResource:
		return http.StatusUnprocessableEntity
	case raffle.KindNotFound:
		return http.StatusNotFound
	case raffle.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	switch {
	case raffle.KindOf(err) != raffle.KindUnknown:
		c.JSON(statusOf(raffle.KindOf(err)), errorResponse{Error: err.Error(), Code: raffle.CodeOf(err)})
	case errors.Is(err, token.ErrOverflow), errors.Is(err, token.ErrInvalidAccount):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		logger.Error("api: request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "BadRequest"})
}

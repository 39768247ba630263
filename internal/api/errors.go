package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/service"
)

// respondError maps service errors to status codes. Anything unrecognised is
// logged and answered with a 500 carrying fallback.
func respondError(c *gin.Context, log zerolog.Logger, err error, fallback string) {
	var verrs service.ValidationErrors
	var dup *service.DuplicateError

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": verrs.Error(), "details": verrs})
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": dup.Error(), "field": dup.Field})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Registro no encontrado"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para esta acción"})
	case errors.Is(err, service.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMailerDisabled):
		c.JSON(http.StatusOK, gin.H{"success": false, "warning": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/service"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// Export handles GET /v1/affiliates/export
// Takes the same filter parameters as the listing and ignores the page
func (h *ExportHandler) Export(c *gin.Context) {
	var filter search.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	file, err := h.services.Export.Export(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		respondError(c, h.log, err, "Error al generar el Excel")
		return
	}

	h.log.Info().
		Str("file", file.Name).
		Int("rows", file.Count).
		Int("size_bytes", len(file.Data)).
		Msg("Export generated")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("X-Total-Count", strconv.Itoa(file.Count))
	c.Data(http.StatusOK, service.ContentTypeXLSX, file.Data)
}

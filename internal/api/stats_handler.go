package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/service"
)

// StatsHandler handles dashboard endpoints
type StatsHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(services *service.Services, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		services: services,
		log:      log.With().Str("handler", "stats").Logger(),
	}
}

// Padron handles GET /v1/stats/padron
func (h *StatsHandler) Padron(c *gin.Context) {
	stats, err := h.services.Stats.Padron(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, h.log, err, "Error al cargar las estadísticas")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Actas handles GET /v1/actas?seccional=&ciudad=&recinto=
func (h *StatsHandler) Actas(c *gin.Context) {
	var scope models.ActaScope
	if err := c.ShouldBindQuery(&scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	view, err := h.services.Stats.Actas(c.Request.Context(), currentActor(c), scope)
	if err != nil {
		respondError(c, h.log, err, "Error al cargar las actas")
		return
	}

	c.JSON(http.StatusOK, view)
}

// CreateActa handles POST /v1/actas
func (h *StatsHandler) CreateActa(c *gin.Context) {
	var acta models.Acta
	if err := c.ShouldBindJSON(&acta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.services.Stats.CreateActa(c.Request.Context(), currentActor(c), &acta)
	if err != nil {
		respondError(c, h.log, err, "Error al guardar el acta")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// DeleteActas handles DELETE /v1/actas?seccional=&ciudad=&recinto=&colegio=&acta_id=
func (h *StatsHandler) DeleteActas(c *gin.Context) {
	var scope models.ActaScope
	if err := c.ShouldBindQuery(&scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	n, err := h.services.Stats.DeleteActas(c.Request.Context(), currentActor(c), scope)
	if err != nil {
		respondError(c, h.log, err, "Error al eliminar las actas")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/service"
)

// AffiliateHandler handles the affiliate registry endpoints
type AffiliateHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewAffiliateHandler creates a new AffiliateHandler
func NewAffiliateHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *AffiliateHandler {
	return &AffiliateHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "affiliate").Logger(),
	}
}

// List handles GET /v1/affiliates
func (h *AffiliateHandler) List(c *gin.Context) {
	var filter search.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	page, err := h.services.Affiliate.List(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		respondError(c, h.log, err, "Error al cargar los afiliados")
		return
	}

	c.JSON(http.StatusOK, page)
}

// Create handles POST /v1/affiliates
func (h *AffiliateHandler) Create(c *gin.Context) {
	var in models.AffiliateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	a, err := h.services.Affiliate.Create(c.Request.Context(), currentActor(c), &in)
	if err != nil {
		respondError(c, h.log, err, "Error al registrar el afiliado")
		return
	}

	c.JSON(http.StatusCreated, a)
}

// Get handles GET /v1/affiliates/:id
func (h *AffiliateHandler) Get(c *gin.Context) {
	a, err := h.services.Affiliate.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Error al cargar el afiliado")
		return
	}

	c.JSON(http.StatusOK, a)
}

// Update handles PATCH /v1/affiliates/:id
func (h *AffiliateHandler) Update(c *gin.Context) {
	var u models.AffiliateUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	a, err := h.services.Affiliate.Update(c.Request.Context(), currentActor(c), c.Param("id"), &u)
	if err != nil {
		respondError(c, h.log, err, "Error al actualizar el afiliado")
		return
	}

	c.JSON(http.StatusOK, a)
}

// ToggleValidation handles POST /v1/affiliates/:id/validation
func (h *AffiliateHandler) ToggleValidation(c *gin.Context) {
	a, err := h.services.Affiliate.ToggleValidation(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Error al cambiar el estado")
		return
	}

	c.JSON(http.StatusOK, a)
}

// SetPhoto handles PUT /v1/affiliates/:id/photo with a multipart "foto" field
func (h *AffiliateHandler) SetPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("foto")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "foto is required"})
		return
	}
	defer file.Close()

	// One byte over the limit is enough for the service to reject it
	body, err := io.ReadAll(io.LimitReader(file, h.cfg.Storage.MaxPhotoSize+1))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read photo upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	a, err := h.services.Affiliate.SetPhoto(c.Request.Context(), currentActor(c), c.Param("id"), body, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, h.log, err, "Error al subir la foto")
		return
	}

	c.JSON(http.StatusOK, a)
}

// Delete handles DELETE /v1/affiliates/:id
func (h *AffiliateHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Affiliate.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, h.log, err, "Error al eliminar el afiliado")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// History handles GET /v1/affiliates/:id/historial
func (h *AffiliateHandler) History(c *gin.Context) {
	events, err := h.services.Affiliate.History(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Error al cargar el historial")
		return
	}

	c.JSON(http.StatusOK, events)
}

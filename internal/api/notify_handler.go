package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/service"
)

// NotifyHandler handles email, WhatsApp and contact form endpoints
type NotifyHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewNotifyHandler creates a new NotifyHandler
func NewNotifyHandler(services *service.Services, log zerolog.Logger) *NotifyHandler {
	return &NotifyHandler{
		services: services,
		log:      log.With().Str("handler", "notify").Logger(),
	}
}

// Templates handles GET /v1/templates
func (h *NotifyHandler) Templates(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Notify.Templates())
}

// WhatsApp handles GET /v1/affiliates/:id/whatsapp?template=&message=
func (h *NotifyHandler) WhatsApp(c *gin.Context) {
	link, err := h.services.Notify.WhatsAppLink(
		c.Request.Context(), currentActor(c), c.Param("id"), c.Query("template"), c.Query("message"),
	)
	if err != nil {
		respondError(c, h.log, err, "Error al generar el enlace")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": link})
}

// SendEmail handles POST /v1/affiliates/:id/email
func (h *NotifyHandler) SendEmail(c *gin.Context) {
	var req service.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.services.Notify.SendEmail(c.Request.Context(), currentActor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err, "Error al enviar el email")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Broadcast handles POST /v1/broadcasts
func (h *NotifyHandler) Broadcast(c *gin.Context) {
	var req service.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.services.Notify.Broadcast(c.Request.Context(), currentActor(c), &req)
	if err != nil {
		respondError(c, h.log, err, "Error en el envío masivo")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Contact handles POST /v1/contact
func (h *NotifyHandler) Contact(c *gin.Context) {
	var msg models.ContactMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.services.Notify.Contact(c.Request.Context(), &msg); err != nil {
		respondError(c, h.log, err, "Error al enviar el mensaje")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Communications handles GET /v1/affiliates/:id/comunicaciones
func (h *NotifyHandler) Communications(c *gin.Context) {
	items, err := h.services.Notify.Communications(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Error al cargar las comunicaciones")
		return
	}

	c.JSON(http.StatusOK, items)
}

// Package messaging holds outbound message templates and builds WhatsApp deep links.
package messaging

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/crm-electoral-api/internal/models"
)

// ErrNoPhone is returned for an affiliate without a phone number
var ErrNoPhone = errors.New("affiliate has no phone number")

// Template keys
const (
	TemplateWelcome      = "bienvenida"
	TemplateInfo         = "info"
	TemplateVerification = "verificacion"
	TemplateCustom       = "custom"
)

// Templates lists the predefined messages in display order
var Templates = []models.MessageTemplate{
	{
		Key:     TemplateWelcome,
		Label:   "Bienvenida",
		Subject: "Bienvenido a la Fuerza del Pueblo",
		Text:    "¡Hola! Es un honor darte la bienvenida a la Plataforma Electoral de la Fuerza del Pueblo en Europa \"CRM Electoral\". Tu registro ha sido procesado exitosamente. Estamos a tu disposición.",
	},
	{
		Key:     TemplateInfo,
		Label:   "Información",
		Subject: "Información Importante - FP Europa",
		Text:    "Hola, te compartimos información relevante sobre las próximas actividades de la seccional. Mantente atento.",
	},
	{
		Key:     TemplateVerification,
		Label:   "Verificación",
		Subject: "Actualización de Datos - SAE",
		Text:    "Saludos. Necesitamos confirmar algunos datos de tu perfil para completar tu validación en el padrón. Por favor contáctanos.",
	},
	{
		Key:   TemplateCustom,
		Label: "Personalizado",
	},
}

// TemplateByKey returns a template, falling back to custom for unknown keys
func TemplateByKey(key string) models.MessageTemplate {
	for _, t := range Templates {
		if t.Key == key {
			return t
		}
	}
	return Templates[len(Templates)-1]
}

// ResolveMessage picks the explicit subject and text when given, else the template's
func ResolveMessage(templateKey, subject, text string) (string, string) {
	t := TemplateByKey(templateKey)
	if strings.TrimSpace(subject) == "" {
		subject = t.Subject
	}
	if strings.TrimSpace(text) == "" {
		text = t.Text
	}
	return subject, text
}

var phoneSeparators = regexp.MustCompile(`[\s\-\(\)]`)

// NormalizePhone strips separators and prefixes the country code when no
// international prefix is present.
func NormalizePhone(phone, countryCode string) string {
	p := phoneSeparators.ReplaceAllString(phone, "")
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	if strings.HasPrefix(p, countryCode) {
		return "+" + p
	}
	return "+" + countryCode + p
}

// WhatsAppLink builds a wa.me deep link with a pre-filled message
func WhatsAppLink(phone, countryCode, text string) (string, error) {
	p := NormalizePhone(phone, countryCode)
	if p == "" {
		return "", ErrNoPhone
	}
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + p + "?text=" + encoded, nil
}

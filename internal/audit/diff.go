// Package audit derives historial events from affiliate state changes and
// records them. Event derivation is pure; recording never fails the
// mutation that triggered it.
package audit

import (
	"github.com/crm-electoral-api/internal/models"
)

// Placeholders written when an optional field is empty
const (
	NoEmail = "sin email"
	NoPhone = "sin teléfono"
	NoCargo = "sin cargo"
	NoPhoto = "sin foto"
	NoDate  = "sin fecha"
)

// Origin of affiliates created by a bulk import
const OriginBulkImport = "importacion_masiva"

type field struct {
	name        string
	placeholder string
	get         func(*models.Affiliate) string
}

// trackedFields are compared in this order, so edit events come out in a stable order
var trackedFields = []field{
	{"nombre", "", func(a *models.Affiliate) string { return a.Nombre }},
	{"apellidos", "", func(a *models.Affiliate) string { return a.Apellidos }},
	{"email", NoEmail, func(a *models.Affiliate) string { return a.Email }},
	{"telefono", NoPhone, func(a *models.Affiliate) string { return a.Telefono }},
	{"seccional", "", func(a *models.Affiliate) string { return a.Seccional }},
	{"cargo_organizacional", NoCargo, func(a *models.Affiliate) string { return a.CargoOrganizacional }},
	{"fecha_nacimiento", NoDate, func(a *models.Affiliate) string {
		if a.FechaNacimiento == nil {
			return ""
		}
		return a.FechaNacimiento.Format(models.DateLayout)
	}},
}

// Diff returns one edit event per changed tracked field and a role change
// event when the role differs. Unchanged fields produce nothing.
func Diff(old, updated *models.Affiliate) []models.AuditEvent {
	var events []models.AuditEvent

	for _, f := range trackedFields {
		before, after := f.get(old), f.get(updated)
		if before == after {
			continue
		}
		events = append(events, models.AuditEvent{
			AffiliateID: old.ID,
			Action:      models.ActionEdited,
			Field:       f.name,
			OldValue:    orPlaceholder(before, f.placeholder),
			NewValue:    orPlaceholder(after, f.placeholder),
		})
	}

	if old.Role != updated.Role {
		events = append(events, models.AuditEvent{
			AffiliateID: old.ID,
			Action:      models.ActionRoleChanged,
			Field:       "role",
			OldValue:    string(old.Role),
			NewValue:    string(updated.Role),
		})
	}

	return events
}

// Created is the event for a single registration
func Created(a *models.Affiliate) models.AuditEvent {
	return models.AuditEvent{
		AffiliateID: a.ID,
		Action:      models.ActionCreated,
		Details: map[string]interface{}{
			"nombre_completo": a.FullName(),
			"cedula":          a.Cedula,
			"seccional":       a.Seccional,
		},
	}
}

// Imported is the event for an affiliate created by a bulk import
func Imported(a *models.Affiliate) models.AuditEvent {
	return models.AuditEvent{
		AffiliateID: a.ID,
		Action:      models.ActionCreated,
		Details: map[string]interface{}{
			"origen":          OriginBulkImport,
			"nombre_completo": a.FullName(),
		},
	}
}

// ValidationToggled is the event for a validation status change
func ValidationToggled(a *models.Affiliate, validado bool) models.AuditEvent {
	action := models.ActionInvalidated
	if validado {
		action = models.ActionValidated
	}
	return models.AuditEvent{
		AffiliateID: a.ID,
		Action:      action,
		Field:       "validado",
		OldValue:    statusWord(a.Validado),
		NewValue:    statusWord(validado),
	}
}

// PhotoChanged is the edit event for a new profile picture
func PhotoChanged(a *models.Affiliate, newURL string) models.AuditEvent {
	before := a.FotoURL
	if before == models.DefaultPhotoURL {
		before = ""
	}
	return models.AuditEvent{
		AffiliateID: a.ID,
		Action:      models.ActionEdited,
		Field:       "foto_url",
		OldValue:    orPlaceholder(before, NoPhoto),
		NewValue:    newURL,
	}
}

// Deleted is the tombstone written after an affiliate is removed
func Deleted(a *models.Affiliate) models.AuditEvent {
	return models.AuditEvent{
		AffiliateID: a.ID,
		Action:      models.ActionDeleted,
		Details: map[string]interface{}{
			"nombre_completo": a.FullName(),
			"cedula":          a.Cedula,
			"seccional":       a.Seccional,
		},
	}
}

func statusWord(validado bool) string {
	if validado {
		return "validado"
	}
	return "pendiente"
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

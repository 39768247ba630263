package models

import (
	"time"
)

// AuditAction is the kind of change recorded in the historial
type AuditAction string

const (
	ActionCreated     AuditAction = "creado"
	ActionEdited      AuditAction = "editado"
	ActionValidated   AuditAction = "validado"
	ActionInvalidated AuditAction = "invalidado"
	ActionRoleChanged AuditAction = "role_cambiado"
	ActionDeleted     AuditAction = "eliminado"
)

// SystemActor is recorded when a change has no attributable user
const SystemActor = "System"

// AuditEvent is one immutable historial entry for one affiliate
type AuditEvent struct {
	ID          string                 `json:"id" db:"id"`
	AffiliateID string                 `json:"afiliado_id" db:"afiliado_id"`
	Action      AuditAction            `json:"accion" db:"accion"`
	Field       string                 `json:"campo_modificado,omitempty" db:"campo_modificado"`
	OldValue    string                 `json:"valor_anterior,omitempty" db:"valor_anterior"`
	NewValue    string                 `json:"valor_nuevo,omitempty" db:"valor_nuevo"`
	Details     map[string]interface{} `json:"detalles,omitempty" db:"detalles"`
	ActorName   string                 `json:"usuario_nombre" db:"usuario_nombre"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

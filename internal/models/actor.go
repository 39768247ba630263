package models

import "strings"

// ActorRole is the authorization level of the caller
type ActorRole string

const (
	ActorAdmin    ActorRole = "admin"
	ActorOperator ActorRole = "operador"
	ActorViewer   ActorRole = "viewer"
)

// Actor is the authenticated caller, passed explicitly into queries and mutations
type Actor struct {
	Name      string    `json:"name"`
	Role      ActorRole `json:"role"`
	Seccional string    `json:"seccional"`
}

// ParseActorRole maps the role claim spellings in use to an ActorRole
func ParseActorRole(s string) ActorRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrador":
		return ActorAdmin
	case "operador", "operator":
		return ActorOperator
	default:
		return ActorViewer
	}
}

func (a Actor) IsAdmin() bool { return a.Role == ActorAdmin }

func (a Actor) IsOperator() bool { return a.Role == ActorOperator }

// CanManage reports whether the actor may mutate an affiliate of the given chapter
func (a Actor) CanManage(seccional string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsOperator() && a.Seccional != "" && a.Seccional == seccional
}

// CanView reports whether the actor may read an affiliate of the given chapter
func (a Actor) CanView(seccional string) bool {
	if a.IsOperator() {
		return a.Seccional != "" && a.Seccional == seccional
	}
	return true
}

// DisplayName is the name written to the historial
func (a Actor) DisplayName() string {
	if strings.TrimSpace(a.Name) == "" {
		return SystemActor
	}
	return a.Name
}

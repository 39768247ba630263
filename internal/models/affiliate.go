package models

import (
	"strings"
	"time"
)

// Role is the system role assigned to an affiliate
type Role string

const (
	RoleMember            Role = "Miembro"
	RoleMemberDC          Role = "Miembro DC"
	RoleDistrictPresident Role = "Presidente DM"
	RoleBlockPresident    Role = "Presidente DB"
	RoleOperator          Role = "Operador"
	RoleAdmin             Role = "Admin"
)

// ValidRoles defines allowed affiliate roles
var ValidRoles = map[Role]bool{
	RoleMember:            true,
	RoleMemberDC:          true,
	RoleDistrictPresident: true,
	RoleBlockPresident:    true,
	RoleOperator:          true,
	RoleAdmin:             true,
}

// Seccionales lists the overseas chapters in display order
var Seccionales = []string{"Madrid", "Barcelona", "Milano", "Zurich", "Holanda", "Valencia"}

// IsSeccional reports whether s names a known chapter
func IsSeccional(s string) bool {
	for _, sec := range Seccionales {
		if sec == s {
			return true
		}
	}
	return false
}

// DefaultPhotoURL is the placeholder picture for affiliates without a photo
const DefaultPhotoURL = "/foto_perfil_afiliados.png"

// DateLayout is the wire format for birth dates
const DateLayout = "2006-01-02"

// Affiliate represents a registered party member
type Affiliate struct {
	ID                  string     `json:"id" db:"id"`
	Nombre              string     `json:"nombre" db:"nombre"`
	Apellidos           string     `json:"apellidos" db:"apellidos"`
	Cedula              string     `json:"cedula" db:"cedula"`
	FechaNacimiento     *time.Time `json:"fecha_nacimiento,omitempty" db:"fecha_nacimiento"`
	Email               string     `json:"email" db:"email"`
	Telefono            string     `json:"telefono" db:"telefono"`
	Seccional           string     `json:"seccional" db:"seccional"`
	CargoOrganizacional string     `json:"cargo_organizacional" db:"cargo_organizacional"`
	Role                Role       `json:"role" db:"role"`
	Validado            bool       `json:"validado" db:"validado"`
	FotoURL             string     `json:"foto_url" db:"foto_url"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// FullName joins given name and last name
func (a *Affiliate) FullName() string {
	return strings.TrimSpace(a.Nombre + " " + a.Apellidos)
}

// IsDistrictPresident reports whether the affiliate is listed in the presidents registry
func (a *Affiliate) IsDistrictPresident() bool {
	return a.Role == RoleDistrictPresident
}

// StatusLabel returns the Spanish validation label used in listings and exports
func (a *Affiliate) StatusLabel() string {
	if a.Validado {
		return "Validado"
	}
	return "Pendiente"
}

// AffiliateInput is the payload for a single-entry registration
type AffiliateInput struct {
	Nombre              string `json:"nombre"`
	Apellidos           string `json:"apellidos"`
	Cedula              string `json:"cedula"`
	FechaNacimiento     string `json:"fecha_nacimiento"`
	Email               string `json:"email"`
	Telefono            string `json:"telefono"`
	Seccional           string `json:"seccional"`
	CargoOrganizacional string `json:"cargo_organizacional"`
	Role                Role   `json:"role"`
}

// AffiliateUpdate carries the editable fields of an affiliate; nil fields are left untouched
type AffiliateUpdate struct {
	Nombre              *string `json:"nombre"`
	Apellidos           *string `json:"apellidos"`
	FechaNacimiento     *string `json:"fecha_nacimiento"`
	Email               *string `json:"email"`
	Telefono            *string `json:"telefono"`
	Seccional           *string `json:"seccional"`
	CargoOrganizacional *string `json:"cargo_organizacional"`
	Role                *Role   `json:"role"`
}

// Apply returns a copy of a with the update's non-nil fields set. birth is
// FechaNacimiento already parsed by the caller and is only used when the
// update carries that field.
func (u *AffiliateUpdate) Apply(a Affiliate, birth *time.Time) Affiliate {
	if u.Nombre != nil {
		a.Nombre = strings.TrimSpace(*u.Nombre)
	}
	if u.Apellidos != nil {
		a.Apellidos = strings.TrimSpace(*u.Apellidos)
	}
	if u.FechaNacimiento != nil {
		a.FechaNacimiento = birth
	}
	if u.Email != nil {
		a.Email = strings.TrimSpace(*u.Email)
	}
	if u.Telefono != nil {
		a.Telefono = strings.TrimSpace(*u.Telefono)
	}
	if u.Seccional != nil {
		a.Seccional = strings.TrimSpace(*u.Seccional)
	}
	if u.CargoOrganizacional != nil {
		a.CargoOrganizacional = strings.TrimSpace(*u.CargoOrganizacional)
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	return a
}

// PresidentRecord is a row of the district presidents registry, keyed by cedula
type PresidentRecord struct {
	Cedula           string `json:"cedula" db:"cedula"`
	NombreCompleto   string `json:"nombre_completo" db:"nombre_completo"`
	Celular          string `json:"celular" db:"celular"`
	CondadoProvincia string `json:"condado_provincia" db:"condado_provincia"`
	Pais             string `json:"pais" db:"pais"`
	Status           string `json:"status" db:"status"`
}

// NewPresidentRecord builds the registry row mirrored from an affiliate
func NewPresidentRecord(a *Affiliate) *PresidentRecord {
	return &PresidentRecord{
		Cedula:           a.Cedula,
		NombreCompleto:   a.FullName(),
		Celular:          a.Telefono,
		CondadoProvincia: a.Seccional,
		Pais:             "España",
		Status:           "Activo",
	}
}

// AffiliatePage is one page of a filtered listing
type AffiliatePage struct {
	Items       []*Affiliate `json:"items"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalPages  int          `json:"total_pages"`
	ShowingFrom int          `json:"showing_from"`
	ShowingTo   int          `json:"showing_to"`
	Error       string       `json:"error,omitempty"`
}

// AffiliateRow is one spreadsheet row keyed by canonical column name, before validation
type AffiliateRow struct {
	Nombre              string
	Apellidos           string
	Cedula              string
	FechaNacimiento     string
	Email               string
	Telefono            string
	Seccional           string
	CargoOrganizacional string
	Role                string
	Validado            string
}

// RegistryAction is the change a save implies for the presidents registry
type RegistryAction int

const (
	RegistryNone RegistryAction = iota
	RegistryUpsert
	RegistryRemove
)

// RegistryActionFor decides the registry change for a save from old to updated.
// old is nil for a new affiliate. A district president is upserted on every
// save so the registry row follows name, phone and chapter edits.
func RegistryActionFor(old, updated *Affiliate) RegistryAction {
	switch {
	case updated.IsDistrictPresident():
		return RegistryUpsert
	case old != nil && old.IsDistrictPresident():
		return RegistryRemove
	default:
		return RegistryNone
	}
}

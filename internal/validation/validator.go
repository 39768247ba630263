package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Join renders errors as one comma-separated message
func Join(errs []ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, ", ")
}

// Validator checks affiliate payloads and import rows
type Validator struct {
	defaultSeccional string
}

// NewValidator creates a new validator; defaultSeccional is used when neither the row nor the actor names a chapter
func NewValidator(defaultSeccional string) *Validator {
	return &Validator{defaultSeccional: defaultSeccional}
}

// IsEmail reports whether s has the local@domain.tld shape
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidateRow checks the required columns of an import row
func (v *Validator) ValidateRow(r *models.AffiliateRow) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(r.Nombre) == "" {
		errors = append(errors, ValidationError{Field: "nombre", Message: "Nombre es obligatorio"})
	}
	if strings.TrimSpace(r.Apellidos) == "" {
		errors = append(errors, ValidationError{Field: "apellidos", Message: "Apellidos es obligatorio"})
	}
	if strings.TrimSpace(r.Cedula) == "" {
		errors = append(errors, ValidationError{Field: "cedula", Message: "Cédula es obligatoria"})
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		errors = append(errors, ValidationError{Field: "email", Message: "Email es obligatorio"})
	} else if !IsEmail(email) {
		errors = append(errors, ValidationError{Field: "email", Message: "Email tiene formato inválido", Value: email})
	}

	return errors
}

// RowToAffiliate resolves chapter, role, status and birth date for a row that passed ValidateRow
func (v *Validator) RowToAffiliate(r *models.AffiliateRow, actor models.Actor) (*models.Affiliate, []ValidationError) {
	var errors []ValidationError

	seccional, ok := v.ResolveSeccional(r.Seccional, actor)
	if !ok {
		errors = append(errors, ValidationError{Field: "seccional", Message: "Seccional no válida", Value: r.Seccional})
	}

	role := models.RoleMember
	if strings.TrimSpace(r.Role) != "" {
		canonical, ok := CanonicalRole(r.Role)
		if !ok {
			errors = append(errors, ValidationError{Field: "role", Message: "Rol no válido", Value: r.Role})
		}
		role = canonical
	}

	birth, err := ParseDate(r.FechaNacimiento)
	if err != nil {
		errors = append(errors, ValidationError{Field: "fecha_nacimiento", Message: "Fecha de nacimiento inválida", Value: r.FechaNacimiento})
	}

	a := &models.Affiliate{
		Nombre:              strings.TrimSpace(r.Nombre),
		Apellidos:           strings.TrimSpace(r.Apellidos),
		Cedula:              strings.TrimSpace(r.Cedula),
		FechaNacimiento:     birth,
		Email:               strings.TrimSpace(r.Email),
		Telefono:            strings.TrimSpace(r.Telefono),
		Seccional:           seccional,
		CargoOrganizacional: strings.TrimSpace(r.CargoOrganizacional),
		Role:                role,
		Validado:            ParseBoolish(r.Validado),
		FotoURL:             models.DefaultPhotoURL,
	}
	return a, errors
}

// ResolveSeccional picks the chapter for a new affiliate. Operators always
// get their own chapter; otherwise the requested value, then the actor's
// chapter, then the configured default.
func (v *Validator) ResolveSeccional(requested string, actor models.Actor) (string, bool) {
	if actor.IsOperator() {
		return actor.Seccional, actor.Seccional != ""
	}
	if strings.TrimSpace(requested) != "" {
		return CanonicalSeccional(requested)
	}
	if actor.Seccional != "" {
		return CanonicalSeccional(actor.Seccional)
	}
	return v.defaultSeccional, true
}

// ValidateInput checks a single-entry registration payload
func (v *Validator) ValidateInput(in *models.AffiliateInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(in.Nombre) == "" {
		errors = append(errors, ValidationError{Field: "nombre", Message: "Nombre es obligatorio"})
	}
	if strings.TrimSpace(in.Apellidos) == "" {
		errors = append(errors, ValidationError{Field: "apellidos", Message: "Apellidos es obligatorio"})
	}
	if strings.TrimSpace(in.Cedula) == "" {
		errors = append(errors, ValidationError{Field: "cedula", Message: "Cédula es obligatoria"})
	}
	if email := strings.TrimSpace(in.Email); email != "" && !IsEmail(email) {
		errors = append(errors, ValidationError{Field: "email", Message: "Email tiene formato inválido", Value: email})
	}
	if in.Role != "" && !models.ValidRoles[in.Role] {
		errors = append(errors, ValidationError{Field: "role", Message: "Rol no válido", Value: string(in.Role)})
	}
	if in.Seccional != "" && !models.IsSeccional(in.Seccional) {
		errors = append(errors, ValidationError{Field: "seccional", Message: "Seccional no válida", Value: in.Seccional})
	}
	if _, err := ParseDate(in.FechaNacimiento); err != nil {
		errors = append(errors, ValidationError{Field: "fecha_nacimiento", Message: "Fecha de nacimiento inválida", Value: in.FechaNacimiento})
	}

	return errors
}

// ValidateUpdate checks the fields present in an edit
func (v *Validator) ValidateUpdate(u *models.AffiliateUpdate) []ValidationError {
	var errors []ValidationError

	if u.Nombre != nil && strings.TrimSpace(*u.Nombre) == "" {
		errors = append(errors, ValidationError{Field: "nombre", Message: "Nombre es obligatorio"})
	}
	if u.Apellidos != nil && strings.TrimSpace(*u.Apellidos) == "" {
		errors = append(errors, ValidationError{Field: "apellidos", Message: "Apellidos es obligatorio"})
	}
	if u.Email != nil {
		if email := strings.TrimSpace(*u.Email); email != "" && !IsEmail(email) {
			errors = append(errors, ValidationError{Field: "email", Message: "Email tiene formato inválido", Value: email})
		}
	}
	if u.Seccional != nil && !models.IsSeccional(strings.TrimSpace(*u.Seccional)) {
		errors = append(errors, ValidationError{Field: "seccional", Message: "Seccional no válida", Value: *u.Seccional})
	}
	if u.Role != nil && !models.ValidRoles[*u.Role] {
		errors = append(errors, ValidationError{Field: "role", Message: "Rol no válido", Value: string(*u.Role)})
	}
	if u.FechaNacimiento != nil {
		if _, err := ParseDate(*u.FechaNacimiento); err != nil {
			errors = append(errors, ValidationError{Field: "fecha_nacimiento", Message: "Fecha de nacimiento inválida", Value: *u.FechaNacimiento})
		}
	}

	return errors
}

// ParseBoolish accepts the truthy spellings found in spreadsheets
func ParseBoolish(s string) bool {
	switch search.Normalize(s) {
	case "true", "si", "1", "x", "validado", "yes", "verdadero":
		return true
	}
	return false
}

// CanonicalSeccional matches a chapter name ignoring case and accents
func CanonicalSeccional(s string) (string, bool) {
	key := search.Normalize(s)
	for _, sec := range models.Seccionales {
		if search.Normalize(sec) == key {
			return sec, true
		}
	}
	return strings.TrimSpace(s), false
}

// CanonicalRole matches a role name ignoring case and accents
func CanonicalRole(s string) (models.Role, bool) {
	key := search.Normalize(s)
	for role := range models.ValidRoles {
		if search.Normalize(string(role)) == key {
			return role, true
		}
	}
	return models.Role(strings.TrimSpace(s)), false
}

var dateLayouts = []string{
	models.DateLayout,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"01-02-06",
	"2006/01/02",
}

// ParseDate accepts ISO dates, day-first dates and Excel serial numbers; empty input yields nil
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

var constraintFields = map[string]string{
	"afiliados_cedula_unique":   "cedula",
	"afiliados_email_unique":    "email",
	"afiliados_telefono_unique": "telefono",
	"afiliados_pkey":            "id",
}

// DuplicateField reports whether err is a unique violation and, when the
// constraint is known, which affiliate column caused it. field is empty
// for an unknown constraint.
func DuplicateField(err error) (field string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return "", false
	}
	return constraintFields[pqErr.Constraint], true
}

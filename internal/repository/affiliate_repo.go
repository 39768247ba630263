package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

const affiliateColumns = `id, nombre, apellidos, cedula, fecha_nacimiento, email, telefono,
	seccional, cargo_organizacional, role, validado, foto_url, created_at`

// affiliateRepo is the concrete implementation of AffiliateRepository
type affiliateRepo struct {
	db *database.DB
}

// NewAffiliateRepo creates a new affiliate repository
func NewAffiliateRepo(db *database.DB) AffiliateRepository {
	return &affiliateRepo{db: db}
}

// Create inserts an affiliate and, for a district president, the registry row in the same transaction
func (r *affiliateRepo) Create(ctx context.Context, a *models.Affiliate) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO afiliados (id, nombre, apellidos, nombre_search, apellidos_search, cedula,
				fecha_nacimiento, email, telefono, seccional, cargo_organizacional, role, validado,
				foto_url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, query,
			a.ID, a.Nombre, a.Apellidos, search.Normalize(a.Nombre), search.Normalize(a.Apellidos),
			a.Cedula, a.FechaNacimiento, nullString(a.Email), nullString(a.Telefono), a.Seccional,
			nullString(a.CargoOrganizacional), a.Role, a.Validado, nullString(a.FotoURL), a.CreatedAt,
		)
		if err != nil {
			return err
		}
		return syncRegistry(ctx, tx, nil, a)
	})
}

// GetByID retrieves an affiliate by ID
func (r *affiliateRepo) GetByID(ctx context.Context, id string) (*models.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM afiliados WHERE id = $1`

	a, err := scanAffiliate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns one page of matching affiliates and the total match count
func (r *affiliateRepo) List(ctx context.Context, c search.Criteria) ([]*models.Affiliate, int, error) {
	where, args := c.Where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM afiliados `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count affiliates: %w", err)
	}
	if total == 0 || c.NoAccess {
		return []*models.Affiliate{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM afiliados %s %s LIMIT %d OFFSET %d`,
		affiliateColumns, where, c.OrderBy(), c.Limit, c.Offset)
	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every matching affiliate without a row range
func (r *affiliateRepo) ListAll(ctx context.Context, c search.Criteria) ([]*models.Affiliate, error) {
	where, args := c.Where()
	query := fmt.Sprintf(`SELECT %s FROM afiliados %s %s`, affiliateColumns, where, c.OrderBy())
	return r.query(ctx, query, args...)
}

// Update writes the edited affiliate and syncs the presidents registry in the same transaction
func (r *affiliateRepo) Update(ctx context.Context, old, updated *models.Affiliate) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE afiliados SET
				nombre = $1, apellidos = $2, nombre_search = $3, apellidos_search = $4,
				fecha_nacimiento = $5, email = $6, telefono = $7, seccional = $8,
				cargo_organizacional = $9, role = $10
			WHERE id = $11
		`
		result, err := tx.ExecContext(ctx, query,
			updated.Nombre, updated.Apellidos, search.Normalize(updated.Nombre), search.Normalize(updated.Apellidos),
			updated.FechaNacimiento, nullString(updated.Email), nullString(updated.Telefono), updated.Seccional,
			nullString(updated.CargoOrganizacional), updated.Role, updated.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return syncRegistry(ctx, tx, old, updated)
	})
}

// ToggleValidated flips the validation flag in one statement and returns the stored value
func (r *affiliateRepo) ToggleValidated(ctx context.Context, id string) (bool, error) {
	var validado bool
	err := r.db.QueryRowContext(ctx, `UPDATE afiliados SET validado = NOT validado WHERE id = $1 RETURNING validado`, id).Scan(&validado)
	return validado, err
}

// SetPhoto stores a new photo reference
func (r *affiliateRepo) SetPhoto(ctx context.Context, id, url string) error {
	return r.exec(ctx, `UPDATE afiliados SET foto_url = $1 WHERE id = $2`, url, id)
}

// Delete removes historial, the registry row of a district president and the affiliate as one unit
func (r *affiliateRepo) Delete(ctx context.Context, a *models.Affiliate) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM afiliados_historial WHERE afiliado_id = $1`, a.ID); err != nil {
			return fmt.Errorf("failed to delete historial: %w", err)
		}
		if a.IsDistrictPresident() {
			if err := deletePresident(ctx, tx, a.Cedula); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM afiliados WHERE id = $1`, a.ID)
		if err != nil {
			return fmt.Errorf("failed to delete affiliate: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// Recipients lists name and email of affiliates with an email, optionally within one chapter
func (r *affiliateRepo) Recipients(ctx context.Context, seccional string) ([]models.Recipient, error) {
	query := `SELECT email, nombre FROM afiliados WHERE email IS NOT NULL AND email <> ''`
	args := []interface{}{}
	if seccional != "" {
		query += ` AND seccional = $1`
		args = append(args, seccional)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var rc models.Recipient
		if err := rows.Scan(&rc.Email, &rc.Nombre); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// Snapshots returns the projection the padron dashboard aggregates
func (r *affiliateRepo) Snapshots(ctx context.Context, seccional string) ([]models.AffiliateSnapshot, error) {
	query := `SELECT seccional, role, validado, created_at FROM afiliados`
	args := []interface{}{}
	if seccional != "" {
		query += ` WHERE seccional = $1`
		args = append(args, seccional)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AffiliateSnapshot
	for rows.Next() {
		var s models.AffiliateSnapshot
		if err := rows.Scan(&s.Seccional, &s.Role, &s.Validado, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns total affiliate count
func (r *affiliateRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM afiliados`).Scan(&count)
	return count, err
}

func (r *affiliateRepo) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *affiliateRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.Affiliate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query affiliates: %w", err)
	}
	defer rows.Close()

	items := []*models.Affiliate{}
	for rows.Next() {
		a, err := scanAffiliate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAffiliate(row rowScanner) (*models.Affiliate, error) {
	var a models.Affiliate
	var email, telefono, cargo, foto sql.NullString
	var birth sql.NullTime

	err := row.Scan(
		&a.ID, &a.Nombre, &a.Apellidos, &a.Cedula, &birth, &email, &telefono,
		&a.Seccional, &cargo, &a.Role, &a.Validado, &foto, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Email = email.String
	a.Telefono = telefono.String
	a.CargoOrganizacional = cargo.String
	a.FotoURL = foto.String
	if a.FotoURL == "" {
		a.FotoURL = models.DefaultPhotoURL
	}
	if birth.Valid {
		t := birth.Time
		a.FechaNacimiento = &t
	}
	return &a, nil
}

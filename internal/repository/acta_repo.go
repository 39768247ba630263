package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
)

// actaRepo is the concrete implementation of ActaRepository
type actaRepo struct {
	db *database.DB
}

// NewActaRepo creates a new acta repository
func NewActaRepo(db *database.DB) ActaRepository {
	return &actaRepo{db: db}
}

// Create inserts a vote-tally record
func (r *actaRepo) Create(ctx context.Context, a *models.Acta) error {
	query := `
		INSERT INTO actas_electorales (id, seccional, ciudad, recinto, colegio, votos_fp, votos_prm,
			votos_pld, votos_otros, votos_nulos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Seccional, a.Ciudad, a.Recinto, a.Colegio, a.VotosFP, a.VotosPRM,
		a.VotosPLD, a.VotosOtros, a.VotosNulos, a.CreatedAt,
	)
	return err
}

// List returns the actas under a scope in hierarchy order
func (r *actaRepo) List(ctx context.Context, scope models.ActaScope) ([]*models.Acta, error) {
	where, args := scopeWhere(scope)
	query := `
		SELECT id, seccional, ciudad, recinto, colegio, votos_fp, votos_prm, votos_pld,
			votos_otros, votos_nulos, created_at
		FROM actas_electorales ` + where + `
		ORDER BY seccional, ciudad, recinto, colegio, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actas := []*models.Acta{}
	for rows.Next() {
		var a models.Acta
		err := rows.Scan(&a.ID, &a.Seccional, &a.Ciudad, &a.Recinto, &a.Colegio, &a.VotosFP,
			&a.VotosPRM, &a.VotosPLD, &a.VotosOtros, &a.VotosNulos, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		actas = append(actas, &a)
	}
	return actas, rows.Err()
}

// Delete removes every acta under a scope and returns how many were removed
func (r *actaRepo) Delete(ctx context.Context, scope models.ActaScope) (int64, error) {
	where, args := scopeWhere(scope)
	if where == "" {
		return 0, fmt.Errorf("refusing to delete actas without a scope")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM actas_electorales `+where, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scopeWhere(s models.ActaScope) (string, []interface{}) {
	if s.ActaID != "" {
		return "WHERE id = $1", []interface{}{s.ActaID}
	}

	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("seccional", s.Seccional)
	add("ciudad", s.Ciudad)
	add("recinto", s.Recinto)
	add("colegio", s.Colegio)

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

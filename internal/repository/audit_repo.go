package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
)

// auditRepo is the concrete implementation of AuditRepository
type auditRepo struct {
	db *database.DB
}

// NewAuditRepo creates a new historial repository
func NewAuditRepo(db *database.DB) AuditRepository {
	return &auditRepo{db: db}
}

// Insert appends events in one transaction using a prepared statement
func (r *auditRepo) Insert(ctx context.Context, events []models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO afiliados_historial (id, afiliado_id, accion, campo_modificado, valor_anterior,
				valor_nuevo, detalles, usuario_nombre, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range events {
			var details interface{}
			if len(e.Details) > 0 {
				raw, err := json.Marshal(e.Details)
				if err != nil {
					return fmt.Errorf("failed to encode detalles: %w", err)
				}
				details = string(raw)
			}
			_, err := stmt.ExecContext(ctx,
				e.ID, e.AffiliateID, e.Action, nullString(e.Field), nullString(e.OldValue),
				nullString(e.NewValue), details, e.ActorName, e.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByAffiliate returns an affiliate's historial, newest first
func (r *auditRepo) ListByAffiliate(ctx context.Context, affiliateID string) ([]models.AuditEvent, error) {
	query := `
		SELECT id, afiliado_id, accion, campo_modificado, valor_anterior, valor_nuevo,
			detalles, usuario_nombre, created_at
		FROM afiliados_historial
		WHERE afiliado_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.AuditEvent{}
	for rows.Next() {
		var e models.AuditEvent
		var field, oldValue, newValue sql.NullString
		var details []byte

		err := rows.Scan(&e.ID, &e.AffiliateID, &e.Action, &field, &oldValue, &newValue,
			&details, &e.ActorName, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Field = field.String
		e.OldValue = oldValue.String
		e.NewValue = newValue.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode detalles of %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Count returns total historial count
func (r *auditRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM afiliados_historial`).Scan(&count)
	return count, err
}

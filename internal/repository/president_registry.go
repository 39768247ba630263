package repository

import (
	"context"
	"fmt"

	"github.com/crm-electoral-api/internal/models"
)

// syncRegistry applies the presidents registry change implied by a save
func syncRegistry(ctx context.Context, ex execer, old, updated *models.Affiliate) error {
	switch models.RegistryActionFor(old, updated) {
	case models.RegistryUpsert:
		return upsertPresident(ctx, ex, models.NewPresidentRecord(updated))
	case models.RegistryRemove:
		return deletePresident(ctx, ex, old.Cedula)
	}
	return nil
}

func upsertPresident(ctx context.Context, ex execer, p *models.PresidentRecord) error {
	query := `
		INSERT INTO europa_presidentes_dm (cedula, nombre_completo, celular, condado_provincia, pais, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (cedula) DO UPDATE SET
			nombre_completo = EXCLUDED.nombre_completo,
			celular = EXCLUDED.celular,
			condado_provincia = EXCLUDED.condado_provincia,
			pais = EXCLUDED.pais,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := ex.ExecContext(ctx, query,
		p.Cedula, p.NombreCompleto, nullString(p.Celular), nullString(p.CondadoProvincia), p.Pais, p.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert president registry: %w", err)
	}
	return nil
}

func deletePresident(ctx context.Context, ex execer, cedula string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM europa_presidentes_dm WHERE cedula = $1`, cedula); err != nil {
		return fmt.Errorf("failed to delete president registry row: %w", err)
	}
	return nil
}

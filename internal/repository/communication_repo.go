package repository

import (
	"context"
	"database/sql"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
)

// communicationRepo is the concrete implementation of CommunicationRepository
type communicationRepo struct {
	db *database.DB
}

// NewCommunicationRepo creates a new communication repository
func NewCommunicationRepo(db *database.DB) CommunicationRepository {
	return &communicationRepo{db: db}
}

// Insert records one outbound message
func (r *communicationRepo) Insert(ctx context.Context, c *models.Communication) error {
	query := `
		INSERT INTO comunicaciones (id, afiliado_id, tipo, asunto, contenido, estado, fecha_envio, email_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.AffiliateID, c.Tipo, nullString(c.Asunto), nullString(c.Contenido),
		c.Estado, c.FechaEnvio, nullString(c.EmailID),
	)
	return err
}

// ListByAffiliate returns messages sent to an affiliate, newest first
func (r *communicationRepo) ListByAffiliate(ctx context.Context, affiliateID string) ([]models.Communication, error) {
	query := `
		SELECT id, afiliado_id, tipo, asunto, contenido, estado, fecha_envio, email_id
		FROM comunicaciones WHERE afiliado_id = $1
		ORDER BY fecha_envio DESC
	`
	rows, err := r.db.QueryContext(ctx, query, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Communication{}
	for rows.Next() {
		var c models.Communication
		var asunto, contenido, emailID sql.NullString
		if err := rows.Scan(&c.ID, &c.AffiliateID, &c.Tipo, &asunto, &contenido, &c.Estado, &c.FechaEnvio, &emailID); err != nil {
			return nil, err
		}
		c.Asunto = asunto.String
		c.Contenido = contenido.String
		c.EmailID = emailID.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveContacts returns the broadcast distribution list
func (r *communicationRepo) ActiveContacts(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, nombre, activo FROM comunicaciones_contactos WHERE activo = TRUE ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Nombre, &c.Activo); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

// AffiliateRepository defines the interface for affiliate data operations
type AffiliateRepository interface {
	Create(ctx context.Context, a *models.Affiliate) error
	GetByID(ctx context.Context, id string) (*models.Affiliate, error)
	List(ctx context.Context, c search.Criteria) ([]*models.Affiliate, int, error)
	ListAll(ctx context.Context, c search.Criteria) ([]*models.Affiliate, error)
	Update(ctx context.Context, old, updated *models.Affiliate) error
	ToggleValidated(ctx context.Context, id string) (bool, error)
	SetPhoto(ctx context.Context, id, url string) error
	Delete(ctx context.Context, a *models.Affiliate) error
	Recipients(ctx context.Context, seccional string) ([]models.Recipient, error)
	Snapshots(ctx context.Context, seccional string) ([]models.AffiliateSnapshot, error)
	Count(ctx context.Context) (int, error)
}

// AuditRepository defines the interface for historial data operations
type AuditRepository interface {
	Insert(ctx context.Context, events []models.AuditEvent) error
	ListByAffiliate(ctx context.Context, affiliateID string) ([]models.AuditEvent, error)
	Count(ctx context.Context) (int, error)
}

// CommunicationRepository defines the interface for outbound message records and the contact list
type CommunicationRepository interface {
	Insert(ctx context.Context, c *models.Communication) error
	ListByAffiliate(ctx context.Context, affiliateID string) ([]models.Communication, error)
	ActiveContacts(ctx context.Context) ([]models.Contact, error)
}

// ActaRepository defines the interface for vote-tally records
type ActaRepository interface {
	Create(ctx context.Context, a *models.Acta) error
	List(ctx context.Context, scope models.ActaScope) ([]*models.Acta, error)
	Delete(ctx context.Context, scope models.ActaScope) (int64, error)
}

// JobRepository defines the interface for import job operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	UpdateProgress(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Affiliate     AffiliateRepository
	Audit         AuditRepository
	Communication CommunicationRepository
	Acta          ActaRepository
	Job           JobRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Affiliate:     NewAffiliateRepo(db),
		Audit:         NewAuditRepo(db),
		Communication: NewCommunicationRepo(db),
		Acta:          NewActaRepo(db),
		Job:           NewJobRepo(db),
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/audit"
	"github.com/crm-electoral-api/internal/background"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/mailer"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/storage"
	"github.com/crm-electoral-api/internal/validation"
)

// Sentinel errors mapped to HTTP status codes by the api package
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation failed")
	ErrDuplicate      = errors.New("duplicate record")
	ErrEmptyFile      = errors.New("el archivo está vacío")
	ErrNoRows         = errors.New("no hay datos para exportar")
	ErrMailerDisabled = errors.New("API Key de Resend no configurada")
)

// ValidationErrors is a failed validation with one entry per offending field
type ValidationErrors []validation.ValidationError

func (v ValidationErrors) Error() string { return validation.Join(v) }

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// invalid builds a single-field validation error
func invalid(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// DuplicateError is a unique-constraint violation on an affiliate column
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return DuplicateMessage(e.Field) }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// DuplicateMessage is the user-facing message for a duplicate on field
func DuplicateMessage(field string) string {
	switch field {
	case "cedula":
		return "Cédula ya existe"
	case "email":
		return "Email ya registrado"
	case "telefono":
		return "Teléfono ya registrado"
	default:
		return "Registro duplicado"
	}
}

// asDuplicate rewrites a unique violation into a DuplicateError and passes other errors through
func asDuplicate(err error) error {
	if field, ok := repository.DuplicateField(err); ok {
		return &DuplicateError{Field: field}
	}
	return err
}

// AffiliateService defines the interface for affiliate queries and mutations
type AffiliateService interface {
	List(ctx context.Context, actor models.Actor, filter search.Filter) (*models.AffiliatePage, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error)
	Create(ctx context.Context, actor models.Actor, in *models.AffiliateInput) (*models.Affiliate, error)
	Update(ctx context.Context, actor models.Actor, id string, u *models.AffiliateUpdate) (*models.Affiliate, error)
	ToggleValidation(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error)
	SetPhoto(ctx context.Context, actor models.Actor, id string, body []byte, contentType string) (*models.Affiliate, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	History(ctx context.Context, actor models.Actor, id string) ([]models.AuditEvent, error)
}

// ImportService defines the interface for import operations
type ImportService interface {
	CreateImportJob(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error)
	ProcessImport(ctx context.Context, job *models.Job) error
}

// ExportService defines the interface for export operations
type ExportService interface {
	Export(ctx context.Context, actor models.Actor, filter search.Filter) (*ExportFile, error)
}

// JobService defines the interface for job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, actor models.Actor, id string) (*models.JobResponse, error)
	GetJobErrors(ctx context.Context, actor models.Actor, id string) ([]models.ImportRowResult, error)
	SetImportService(importService ImportService)
}

// NotifyService defines the interface for outbound email and WhatsApp
type NotifyService interface {
	Templates() []models.MessageTemplate
	WhatsAppLink(ctx context.Context, actor models.Actor, affiliateID, template, message string) (string, error)
	SendEmail(ctx context.Context, actor models.Actor, affiliateID string, req *EmailRequest) (*models.EmailResult, error)
	Broadcast(ctx context.Context, actor models.Actor, req *BroadcastRequest) (*models.BroadcastResult, error)
	Contact(ctx context.Context, msg *models.ContactMessage) error
	SendWelcome(ctx context.Context, a *models.Affiliate) error
	Communications(ctx context.Context, actor models.Actor, affiliateID string) ([]models.Communication, error)
}

// StatsService defines the interface for dashboards and operational counters
type StatsService interface {
	Padron(ctx context.Context, actor models.Actor) (*models.PadronStats, error)
	Actas(ctx context.Context, actor models.Actor, scope models.ActaScope) (*models.ActaView, error)
	CreateActa(ctx context.Context, actor models.Actor, a *models.Acta) (*models.Acta, error)
	DeleteActas(ctx context.Context, actor models.Actor, scope models.ActaScope) (int64, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// Services holds all service interfaces
type Services struct {
	Affiliate AffiliateService
	Import    ImportService
	Export    ExportService
	Job       JobService
	Notify    NotifyService
	Stats     StatsService
}

// Dependencies are the external collaborators services talk to
type Dependencies struct {
	Mailer   mailer.Mailer
	Uploader storage.Uploader
	// Cache is optional; nil disables dashboard caching
	Cache  *redis.Client
	Runner *background.Runner
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, deps Dependencies, cfg *config.Config, log zerolog.Logger) *Services {
	if deps.Mailer == nil {
		deps.Mailer = mailer.NewDisabled()
	}
	if deps.Uploader == nil {
		deps.Uploader = storage.NoopUploader{}
	}
	if deps.Runner == nil {
		deps.Runner = background.NewRunner(cfg.Mail.MaxSideEffectWorker, cfg.Mail.SideEffectTimeout, log)
	}

	recorder := audit.NewRecorder(repos.Audit, log)
	validator := validation.NewValidator(cfg.Org.DefaultSeccional)
	results := newResultStore(cfg.Import.ResultsTTL)
	clock := func() time.Time { return time.Now().In(cfg.Org.Location()) }

	notifySvc := newNotifyService(repos, deps.Mailer, deps.Runner, cfg, log)
	affiliateSvc := newAffiliateService(repos, recorder, validator, notifySvc, deps, cfg, clock, log)
	jobSvc := newJobService(repos.Job, results, cfg, log)
	importSvc := newImportService(repos, recorder, validator, results, cfg, log)
	exportSvc := newExportService(repos, cfg, clock, log)
	statsSvc := newStatsService(repos, deps.Cache, cfg, log)

	// Wire up job processor to import service
	jobSvc.SetImportService(importSvc)

	return &Services{
		Affiliate: affiliateSvc,
		Import:    importSvc,
		Export:    exportSvc,
		Job:       jobSvc,
		Notify:    notifySvc,
		Stats:     statsSvc,
	}
}

package mocks

import (
	"context"
	"sync"

	"github.com/crm-electoral-api/internal/mailer"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/service"
	"github.com/crm-electoral-api/internal/storage"
)

var (
	_ service.AffiliateService = (*MockAffiliateService)(nil)
	_ service.ImportService    = (*MockImportService)(nil)
	_ service.ExportService    = (*MockExportService)(nil)
	_ service.JobService       = (*MockJobService)(nil)
	_ service.NotifyService    = (*MockNotifyService)(nil)
	_ service.StatsService     = (*MockStatsService)(nil)
	_ mailer.Mailer            = (*MockMailer)(nil)
	_ storage.Uploader         = (*MockUploader)(nil)
)

// MockAffiliateService is a mock implementation of AffiliateService
type MockAffiliateService struct {
	ListFunc     func(ctx context.Context, actor models.Actor, filter search.Filter) (*models.AffiliatePage, error)
	GetFunc      func(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error)
	CreateFunc   func(ctx context.Context, actor models.Actor, in *models.AffiliateInput) (*models.Affiliate, error)
	UpdateFunc   func(ctx context.Context, actor models.Actor, id string, u *models.AffiliateUpdate) (*models.Affiliate, error)
	ToggleFunc   func(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error)
	SetPhotoFunc func(ctx context.Context, actor models.Actor, id string, body []byte, contentType string) (*models.Affiliate, error)
	DeleteFunc   func(ctx context.Context, actor models.Actor, id string) error
	HistoryFunc  func(ctx context.Context, actor models.Actor, id string) ([]models.AuditEvent, error)

	// LastActor and LastFilter capture the most recent List call
	LastActor  models.Actor
	LastFilter search.Filter
}

func NewMockAffiliateService() *MockAffiliateService {
	return &MockAffiliateService{}
}

func (m *MockAffiliateService) List(ctx context.Context, actor models.Actor, filter search.Filter) (*models.AffiliatePage, error) {
	m.LastActor, m.LastFilter = actor, filter
	if m.ListFunc != nil {
		return m.ListFunc(ctx, actor, filter)
	}
	return &models.AffiliatePage{Items: []*models.Affiliate{}, Page: 1, PageSize: search.PageSize}, nil
}

func (m *MockAffiliateService) Get(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, actor, id)
	}
	return nil, service.ErrNotFound
}

func (m *MockAffiliateService) Create(ctx context.Context, actor models.Actor, in *models.AffiliateInput) (*models.Affiliate, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, actor, in)
	}
	return &models.Affiliate{ID: "new-id", Nombre: in.Nombre, Apellidos: in.Apellidos, Cedula: in.Cedula}, nil
}

func (m *MockAffiliateService) Update(ctx context.Context, actor models.Actor, id string, u *models.AffiliateUpdate) (*models.Affiliate, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, actor, id, u)
	}
	return nil, service.ErrNotFound
}

func (m *MockAffiliateService) ToggleValidation(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	if m.ToggleFunc != nil {
		return m.ToggleFunc(ctx, actor, id)
	}
	return nil, service.ErrNotFound
}

func (m *MockAffiliateService) SetPhoto(ctx context.Context, actor models.Actor, id string, body []byte, contentType string) (*models.Affiliate, error) {
	if m.SetPhotoFunc != nil {
		return m.SetPhotoFunc(ctx, actor, id, body, contentType)
	}
	return nil, service.ErrNotFound
}

func (m *MockAffiliateService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, actor, id)
	}
	return nil
}

func (m *MockAffiliateService) History(ctx context.Context, actor models.Actor, id string) ([]models.AuditEvent, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, actor, id)
	}
	return []models.AuditEvent{}, nil
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	CreateJobFunc func(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error)
	ProcessFunc   func(ctx context.Context, job *models.Job) error
	Requests      []*models.ImportRequest
}

func NewMockImportService() *MockImportService {
	return &MockImportService{}
}

func (m *MockImportService) CreateImportJob(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error) {
	m.Requests = append(m.Requests, req)
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, actor, req)
	}
	return &models.Job{
		ID:             "test-job-id",
		Status:         models.JobStatusPending,
		FileName:       req.FileName,
		FilePath:       req.FilePath,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

func (m *MockImportService) ProcessImport(ctx context.Context, job *models.Job) error {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, job)
	}
	return nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	ExportFunc func(ctx context.Context, actor models.Actor, filter search.Filter) (*service.ExportFile, error)
}

func NewMockExportService() *MockExportService {
	return &MockExportService{}
}

func (m *MockExportService) Export(ctx context.Context, actor models.Actor, filter search.Filter) (*service.ExportFile, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, actor, filter)
	}
	return nil, service.ErrNoRows
}

// MockJobService is a mock implementation of JobService. Reads apply the
// same visibility rule as the real service.
type MockJobService struct {
	Jobs   map[string]*models.JobResponse
	Errors map[string][]models.ImportRowResult
}

func NewMockJobService() *MockJobService {
	return &MockJobService{
		Jobs:   make(map[string]*models.JobResponse),
		Errors: make(map[string][]models.ImportRowResult),
	}
}

func (m *MockJobService) StartProcessor(ctx context.Context) {}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) visible(actor models.Actor, id string) (*models.JobResponse, error) {
	if !actor.IsAdmin() && !actor.IsOperator() {
		return nil, service.ErrForbidden
	}
	job, ok := m.Jobs[id]
	if !ok || !job.Job.VisibleTo(actor) {
		return nil, service.ErrNotFound
	}
	return job, nil
}

func (m *MockJobService) GetJob(ctx context.Context, actor models.Actor, id string) (*models.JobResponse, error) {
	return m.visible(actor, id)
}

func (m *MockJobService) GetJobErrors(ctx context.Context, actor models.Actor, id string) ([]models.ImportRowResult, error) {
	if _, err := m.visible(actor, id); err != nil {
		return nil, err
	}
	return m.Errors[id], nil
}

func (m *MockJobService) SetImportService(importService service.ImportService) {}

// MockNotifyService is a mock implementation of NotifyService
type MockNotifyService struct {
	WhatsAppFunc       func(ctx context.Context, actor models.Actor, affiliateID, template, message string) (string, error)
	SendEmailFunc      func(ctx context.Context, actor models.Actor, affiliateID string, req *service.EmailRequest) (*models.EmailResult, error)
	BroadcastFunc      func(ctx context.Context, actor models.Actor, req *service.BroadcastRequest) (*models.BroadcastResult, error)
	ContactFunc        func(ctx context.Context, msg *models.ContactMessage) error
	CommunicationsFunc func(ctx context.Context, actor models.Actor, affiliateID string) ([]models.Communication, error)

	mu       sync.Mutex
	Welcomed []string
}

func NewMockNotifyService() *MockNotifyService {
	return &MockNotifyService{}
}

func (m *MockNotifyService) Templates() []models.MessageTemplate {
	return []models.MessageTemplate{{Key: "custom", Label: "Personalizado"}}
}

func (m *MockNotifyService) WhatsAppLink(ctx context.Context, actor models.Actor, affiliateID, template, message string) (string, error) {
	if m.WhatsAppFunc != nil {
		return m.WhatsAppFunc(ctx, actor, affiliateID, template, message)
	}
	return "https://wa.me/34600000000?text=", nil
}

func (m *MockNotifyService) SendEmail(ctx context.Context, actor models.Actor, affiliateID string, req *service.EmailRequest) (*models.EmailResult, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, actor, affiliateID, req)
	}
	return &models.EmailResult{Success: true, EmailID: "email-1"}, nil
}

func (m *MockNotifyService) Broadcast(ctx context.Context, actor models.Actor, req *service.BroadcastRequest) (*models.BroadcastResult, error) {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, actor, req)
	}
	return &models.BroadcastResult{}, nil
}

func (m *MockNotifyService) Contact(ctx context.Context, msg *models.ContactMessage) error {
	if m.ContactFunc != nil {
		return m.ContactFunc(ctx, msg)
	}
	return nil
}

func (m *MockNotifyService) SendWelcome(ctx context.Context, a *models.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Welcomed = append(m.Welcomed, a.Email)
	return nil
}

func (m *MockNotifyService) Communications(ctx context.Context, actor models.Actor, affiliateID string) ([]models.Communication, error) {
	if m.CommunicationsFunc != nil {
		return m.CommunicationsFunc(ctx, actor, affiliateID)
	}
	return []models.Communication{}, nil
}

// MockStatsService is a mock implementation of StatsService
type MockStatsService struct {
	PadronFunc      func(ctx context.Context, actor models.Actor) (*models.PadronStats, error)
	ActasFunc       func(ctx context.Context, actor models.Actor, scope models.ActaScope) (*models.ActaView, error)
	CreateActaFunc  func(ctx context.Context, actor models.Actor, a *models.Acta) (*models.Acta, error)
	DeleteActasFunc func(ctx context.Context, actor models.Actor, scope models.ActaScope) (int64, error)
	CountsResult    map[string]int
}

func NewMockStatsService() *MockStatsService {
	return &MockStatsService{CountsResult: map[string]int{"afiliados": 0}}
}

func (m *MockStatsService) Padron(ctx context.Context, actor models.Actor) (*models.PadronStats, error) {
	if m.PadronFunc != nil {
		return m.PadronFunc(ctx, actor)
	}
	return &models.PadronStats{}, nil
}

func (m *MockStatsService) Actas(ctx context.Context, actor models.Actor, scope models.ActaScope) (*models.ActaView, error) {
	if m.ActasFunc != nil {
		return m.ActasFunc(ctx, actor, scope)
	}
	return &models.ActaView{Level: scope.Level(), Scope: scope, SubItems: []models.ActaSubItem{}}, nil
}

func (m *MockStatsService) CreateActa(ctx context.Context, actor models.Actor, a *models.Acta) (*models.Acta, error) {
	if m.CreateActaFunc != nil {
		return m.CreateActaFunc(ctx, actor, a)
	}
	a.ID = "acta-1"
	return a, nil
}

func (m *MockStatsService) DeleteActas(ctx context.Context, actor models.Actor, scope models.ActaScope) (int64, error) {
	if m.DeleteActasFunc != nil {
		return m.DeleteActasFunc(ctx, actor, scope)
	}
	return 0, nil
}

func (m *MockStatsService) Counts(ctx context.Context) (map[string]int, error) {
	return m.CountsResult, nil
}

// MockMailer records sent emails
type MockMailer struct {
	mu        sync.Mutex
	Disabled  bool
	Sent      []*mailer.Email
	Batches   [][]*mailer.Email
	SendErr   error
	BatchFunc func(ctx context.Context, emails []*mailer.Email) ([]string, error)
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Enabled() bool { return !m.Disabled }

func (m *MockMailer) Send(ctx context.Context, e *mailer.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Disabled {
		return "", mailer.ErrDisabled
	}
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.Sent = append(m.Sent, e)
	return "email-" + e.To[0], nil
}

func (m *MockMailer) SendBatch(ctx context.Context, emails []*mailer.Email) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Disabled {
		return nil, mailer.ErrDisabled
	}
	m.Batches = append(m.Batches, emails)
	if m.BatchFunc != nil {
		return m.BatchFunc(ctx, emails)
	}
	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = "email-" + e.To[0]
	}
	return ids, nil
}

// SentCount returns the number of single sends
func (m *MockMailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockUploader stores uploads in memory
type MockUploader struct {
	Uploads   map[string][]byte
	UploadErr error
}

func NewMockUploader() *MockUploader {
	return &MockUploader{Uploads: make(map[string][]byte)}
}

func (m *MockUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	if m.UploadErr != nil {
		return nil, m.UploadErr
	}
	m.Uploads[input.Key] = input.Body
	return &storage.UploadResult{URL: "/fotos_afiliados/" + input.Key}, nil
}

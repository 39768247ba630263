package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/search"
)

var (
	_ repository.AffiliateRepository     = (*MockAffiliateRepository)(nil)
	_ repository.AuditRepository         = (*MockAuditRepository)(nil)
	_ repository.CommunicationRepository = (*MockCommunicationRepository)(nil)
	_ repository.ActaRepository          = (*MockActaRepository)(nil)
	_ repository.JobRepository           = (*MockJobRepository)(nil)
)

// MockRepositories bundles in-memory repositories sharing one historial
type MockRepositories struct {
	Affiliate     *MockAffiliateRepository
	Audit         *MockAuditRepository
	Communication *MockCommunicationRepository
	Acta          *MockActaRepository
	Job           *MockJobRepository
}

func NewMockRepositories() *MockRepositories {
	audit := NewMockAuditRepository()
	affiliates := NewMockAffiliateRepository()
	affiliates.Historial = audit
	return &MockRepositories{
		Affiliate:     affiliates,
		Audit:         audit,
		Communication: NewMockCommunicationRepository(),
		Acta:          NewMockActaRepository(),
		Job:           NewMockJobRepository(),
	}
}

// Repositories exposes the mocks through the repository interfaces
func (m *MockRepositories) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Affiliate:     m.Affiliate,
		Audit:         m.Audit,
		Communication: m.Communication,
		Acta:          m.Acta,
		Job:           m.Job,
	}
}

// UniqueViolation builds the driver error PostgreSQL returns for a duplicate key
func UniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint, Message: "duplicate key value violates unique constraint"}
}

// MockAffiliateRepository is an in-memory AffiliateRepository enforcing the
// unique columns and mirroring district presidents into Presidents.
type MockAffiliateRepository struct {
	mu          sync.Mutex
	Affiliates  map[string]*models.Affiliate
	Presidents  map[string]*models.PresidentRecord
	Historial   *MockAuditRepository
	CreateFunc  func(ctx context.Context, a *models.Affiliate) error
	ListError   error
	UpdateError error
	DeleteError error
	CreateCalls int
}

func NewMockAffiliateRepository() *MockAffiliateRepository {
	return &MockAffiliateRepository{
		Affiliates: make(map[string]*models.Affiliate),
		Presidents: make(map[string]*models.PresidentRecord),
	}
}

func (m *MockAffiliateRepository) Create(ctx context.Context, a *models.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, a); err != nil {
			return err
		}
	}
	if _, exists := m.Affiliates[a.ID]; exists {
		return UniqueViolation("afiliados_pkey")
	}
	if err := m.checkUniqueLocked(a); err != nil {
		return err
	}

	c := *a
	m.Affiliates[a.ID] = &c
	m.syncLocked(nil, &c)
	return nil
}

func (m *MockAffiliateRepository) checkUniqueLocked(a *models.Affiliate) error {
	for _, other := range m.Affiliates {
		if other.ID == a.ID {
			continue
		}
		if other.Cedula == a.Cedula {
			return UniqueViolation("afiliados_cedula_unique")
		}
		if a.Email != "" && other.Email == a.Email {
			return UniqueViolation("afiliados_email_unique")
		}
		if a.Telefono != "" && other.Telefono == a.Telefono {
			return UniqueViolation("afiliados_telefono_unique")
		}
	}
	return nil
}

func (m *MockAffiliateRepository) syncLocked(old, updated *models.Affiliate) {
	switch models.RegistryActionFor(old, updated) {
	case models.RegistryUpsert:
		m.Presidents[updated.Cedula] = models.NewPresidentRecord(updated)
	case models.RegistryRemove:
		delete(m.Presidents, old.Cedula)
	}
}

func (m *MockAffiliateRepository) GetByID(ctx context.Context, id string) (*models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Affiliates[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *MockAffiliateRepository) matching(c search.Criteria) []*models.Affiliate {
	var items []*models.Affiliate
	for _, a := range m.Affiliates {
		if c.Matches(a) {
			copied := *a
			items = append(items, &copied)
		}
	}
	c.Sort(items)
	return items
}

func (m *MockAffiliateRepository) List(ctx context.Context, c search.Criteria) ([]*models.Affiliate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListError != nil {
		return nil, 0, m.ListError
	}
	items := m.matching(c)
	total := len(items)
	if c.Offset >= total {
		return []*models.Affiliate{}, total, nil
	}
	end := total
	if c.Limit > 0 && c.Offset+c.Limit < total {
		end = c.Offset + c.Limit
	}
	return items[c.Offset:end], total, nil
}

func (m *MockAffiliateRepository) ListAll(ctx context.Context, c search.Criteria) ([]*models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.matching(c), nil
}

func (m *MockAffiliateRepository) Update(ctx context.Context, old, updated *models.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Affiliates[updated.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := m.checkUniqueLocked(updated); err != nil {
		return err
	}
	c := *updated
	m.Affiliates[updated.ID] = &c
	m.syncLocked(old, &c)
	return nil
}

func (m *MockAffiliateRepository) ToggleValidated(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Affiliates[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	a.Validado = !a.Validado
	return a.Validado, nil
}

func (m *MockAffiliateRepository) SetPhoto(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Affiliates[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.FotoURL = url
	return nil
}

// Delete mirrors the transactional cascade: nothing changes when it fails
func (m *MockAffiliateRepository) Delete(ctx context.Context, a *models.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.Affiliates[a.ID]; !ok {
		return sql.ErrNoRows
	}
	if m.Historial != nil {
		m.Historial.DeleteByAffiliate(a.ID)
	}
	if a.IsDistrictPresident() {
		delete(m.Presidents, a.Cedula)
	}
	delete(m.Affiliates, a.ID)
	return nil
}

func (m *MockAffiliateRepository) Recipients(ctx context.Context, seccional string) ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Recipient
	for _, a := range m.Affiliates {
		if strings.TrimSpace(a.Email) == "" {
			continue
		}
		if seccional != "" && a.Seccional != seccional {
			continue
		}
		out = append(out, models.Recipient{Email: a.Email, Nombre: a.Nombre})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MockAffiliateRepository) Snapshots(ctx context.Context, seccional string) ([]models.AffiliateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AffiliateSnapshot
	for _, a := range m.Affiliates {
		if seccional != "" && a.Seccional != seccional {
			continue
		}
		out = append(out, models.AffiliateSnapshot{
			Seccional: a.Seccional,
			Role:      a.Role,
			Validado:  a.Validado,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

func (m *MockAffiliateRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Affiliates), nil
}

// MockAuditRepository is an in-memory AuditRepository
type MockAuditRepository struct {
	mu          sync.Mutex
	Events      []models.AuditEvent
	InsertError error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Insert(ctx context.Context, events []models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return m.InsertError
	}
	m.Events = append(m.Events, events...)
	return nil
}

// ListByAffiliate returns events newest first; events with equal timestamps
// come back in reverse insertion order
func (m *MockAuditRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditEvent
	for i := len(m.Events) - 1; i >= 0; i-- {
		if m.Events[i].AffiliateID == affiliateID {
			out = append(out, m.Events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockAuditRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events), nil
}

// DeleteByAffiliate drops every event of one affiliate
func (m *MockAuditRepository) DeleteByAffiliate(affiliateID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.Events[:0]
	for _, e := range m.Events {
		if e.AffiliateID != affiliateID {
			kept = append(kept, e)
		}
	}
	m.Events = kept
}

// ByAffiliate returns events of one affiliate in insertion order
func (m *MockAuditRepository) ByAffiliate(affiliateID string) []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditEvent
	for _, e := range m.Events {
		if e.AffiliateID == affiliateID {
			out = append(out, e)
		}
	}
	return out
}

// MockCommunicationRepository is an in-memory CommunicationRepository
type MockCommunicationRepository struct {
	mu          sync.Mutex
	Items       []models.Communication
	Contacts    []models.Contact
	InsertError error
}

func NewMockCommunicationRepository() *MockCommunicationRepository {
	return &MockCommunicationRepository{}
}

func (m *MockCommunicationRepository) Insert(ctx context.Context, c *models.Communication) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return m.InsertError
	}
	m.Items = append(m.Items, *c)
	return nil
}

func (m *MockCommunicationRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]models.Communication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Communication
	for i := len(m.Items) - 1; i >= 0; i-- {
		if m.Items[i].AffiliateID == affiliateID {
			out = append(out, m.Items[i])
		}
	}
	return out, nil
}

func (m *MockCommunicationRepository) ActiveContacts(ctx context.Context) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Contact
	for _, c := range m.Contacts {
		if c.Activo {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of recorded communications
func (m *MockCommunicationRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Items)
}

// MockActaRepository is an in-memory ActaRepository
type MockActaRepository struct {
	mu    sync.Mutex
	Actas []*models.Acta
}

func NewMockActaRepository() *MockActaRepository {
	return &MockActaRepository{}
}

func (m *MockActaRepository) Create(ctx context.Context, a *models.Acta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actas = append(m.Actas, a)
	return nil
}

func (m *MockActaRepository) List(ctx context.Context, scope models.ActaScope) ([]*models.Acta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Acta
	for _, a := range m.Actas {
		if scope.Contains(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockActaRepository) Delete(ctx context.Context, scope models.ActaScope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == (models.ActaScope{}) {
		return 0, fmt.Errorf("refusing to delete actas without a scope")
	}
	var kept []*models.Acta
	var n int64
	for _, a := range m.Actas {
		if scope.Contains(a) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.Actas = kept
	return n, nil
}

// MockJobRepository is an in-memory JobRepository
type MockJobRepository struct {
	mu              sync.Mutex
	Jobs            map[string]*models.Job
	IdempotencyJobs map[string]*models.Job
	CreateError     error
	UpdateError     error
	ProgressUpdates int
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs:            make(map[string]*models.Job),
		IdempotencyJobs: make(map[string]*models.Job),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return m.CreateError
	}
	m.Jobs[job.ID] = job
	if job.IdempotencyKey != "" {
		m.IdempotencyJobs[job.IdempotencyKey] = job
	}
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.Jobs[job.ID] = job
	return nil
}

func (m *MockJobRepository) UpdateProgress(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProgressUpdates++
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs[id], nil
}

func (m *MockJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IdempotencyJobs[key], nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.Job
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusPending {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	return true, nil
}

func (m *MockJobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.JobStatus]int)
	for _, job := range m.Jobs {
		counts[job.Status]++
	}
	return counts, nil
}

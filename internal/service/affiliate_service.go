package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/audit"
	"github.com/crm-electoral-api/internal/background"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/storage"
	"github.com/crm-electoral-api/internal/validation"
)

// listErrorMessage is shown instead of rows when the listing query fails
const listErrorMessage = "Error al cargar los afiliados"

// affiliateService is the concrete implementation of AffiliateService
type affiliateService struct {
	repos     *repository.Repositories
	recorder  *audit.Recorder
	validator *validation.Validator
	notify    NotifyService
	uploader  storage.Uploader
	runner    *background.Runner
	cfg       *config.Config
	now       func() time.Time
	log       zerolog.Logger
}

// newAffiliateService creates a new AffiliateService
func newAffiliateService(
	repos *repository.Repositories,
	recorder *audit.Recorder,
	validator *validation.Validator,
	notify NotifyService,
	deps Dependencies,
	cfg *config.Config,
	now func() time.Time,
	log zerolog.Logger,
) *affiliateService {
	return &affiliateService{
		repos:     repos,
		recorder:  recorder,
		validator: validator,
		notify:    notify,
		uploader:  deps.Uploader,
		runner:    deps.Runner,
		cfg:       cfg,
		now:       now,
		log:       log.With().Str("service", "affiliate").Logger(),
	}
}

// List returns one page of affiliates. A failed query yields an empty page
// carrying an error message rather than an error, so clients always leave
// their loading state.
func (s *affiliateService) List(ctx context.Context, actor models.Actor, filter search.Filter) (*models.AffiliatePage, error) {
	c := search.Resolve(filter, actor, s.now())

	items, total, err := s.repos.Affiliate.List(ctx, c)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("actor", actor.DisplayName()).
			Str("seccional", c.Seccional).
			Int("page", c.Page).
			Msg("Failed to list affiliates")
		page := search.NewPage(nil, 0, c)
		page.Error = listErrorMessage
		return page, nil
	}

	return search.NewPage(items, total, c), nil
}

// Get returns one affiliate visible to actor
func (s *affiliateService) Get(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	a, err := s.repos.Affiliate.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if !actor.CanView(a.Seccional) {
		return nil, ErrForbidden
	}
	return a, nil
}

// manageable loads an affiliate and checks the actor may mutate it
func (s *affiliateService) manageable(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	a, err := s.repos.Affiliate.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if !actor.CanManage(a.Seccional) {
		return nil, ErrForbidden
	}
	return a, nil
}

// Create registers a single affiliate. New affiliates always start unvalidated.
func (s *affiliateService) Create(ctx context.Context, actor models.Actor, in *models.AffiliateInput) (*models.Affiliate, error) {
	if !actor.IsAdmin() && !actor.IsOperator() {
		return nil, ErrForbidden
	}
	if errs := s.validator.ValidateInput(in); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	seccional, ok := s.validator.ResolveSeccional(in.Seccional, actor)
	if !ok {
		return nil, invalid("seccional", "Seccional no válida")
	}
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	birth, _ := validation.ParseDate(in.FechaNacimiento)

	a := &models.Affiliate{
		ID:                  uuid.New().String(),
		Nombre:              strings.TrimSpace(in.Nombre),
		Apellidos:           strings.TrimSpace(in.Apellidos),
		Cedula:              strings.TrimSpace(in.Cedula),
		FechaNacimiento:     birth,
		Email:               strings.TrimSpace(in.Email),
		Telefono:            strings.TrimSpace(in.Telefono),
		Seccional:           seccional,
		CargoOrganizacional: strings.TrimSpace(in.CargoOrganizacional),
		Role:                role,
		Validado:            false,
		FotoURL:             models.DefaultPhotoURL,
		CreatedAt:           s.now(),
	}

	if err := s.repos.Affiliate.Create(ctx, a); err != nil {
		if dup := asDuplicate(err); dup != err {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create affiliate: %w", err)
	}

	s.recorder.Record(ctx, actor, audit.Created(a))

	if a.Email != "" {
		welcome := *a
		s.runner.Go("welcome_email", func(ctx context.Context) error {
			return s.notify.SendWelcome(ctx, &welcome)
		})
	}

	s.log.Info().
		Str("affiliate_id", a.ID).
		Str("seccional", a.Seccional).
		Str("actor", actor.DisplayName()).
		Msg("Affiliate created")

	return a, nil
}

// Update applies an edit, records one historial event per changed field and
// keeps the presidents registry in step with the role.
func (s *affiliateService) Update(ctx context.Context, actor models.Actor, id string, u *models.AffiliateUpdate) (*models.Affiliate, error) {
	old, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if errs := s.validator.ValidateUpdate(u); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	var birth *time.Time
	if u.FechaNacimiento != nil {
		birth, _ = validation.ParseDate(*u.FechaNacimiento)
	}
	updated := u.Apply(*old, birth)
	if actor.IsOperator() && updated.Seccional != actor.Seccional {
		return nil, ErrForbidden
	}

	events := audit.Diff(old, &updated)
	if len(events) == 0 {
		return old, nil
	}

	if err := s.repos.Affiliate.Update(ctx, old, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if dup := asDuplicate(err); dup != err {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to update affiliate: %w", err)
	}

	s.recorder.Record(ctx, actor, events...)
	return &updated, nil
}

// ToggleValidation flips the validation flag
func (s *affiliateService) ToggleValidation(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
	a, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	validado, err := s.repos.Affiliate.ToggleValidated(ctx, a.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle validation: %w", err)
	}
	a.Validado = validado

	s.recorder.Record(ctx, actor, audit.ValidationToggled(a, validado))
	return a, nil
}

// SetPhoto stores a new profile picture and points the affiliate at it
func (s *affiliateService) SetPhoto(ctx context.Context, actor models.Actor, id string, body []byte, contentType string) (*models.Affiliate, error) {
	if len(body) == 0 {
		return nil, invalid("foto", "La imagen está vacía")
	}
	if limit := s.cfg.Storage.MaxPhotoSize; limit > 0 && int64(len(body)) > limit {
		return nil, invalid("foto", "La imagen supera el tamaño máximo permitido")
	}

	a, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	key, detected, err := storage.PhotoKey(a.ID, body, contentType)
	if err != nil {
		return nil, invalid("foto", "Formato de imagen no soportado")
	}

	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          key,
		Body:         body,
		ContentType:  detected,
		CacheControl: "public, max-age=3600",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	event := audit.PhotoChanged(a, res.URL)
	if err := s.repos.Affiliate.SetPhoto(ctx, a.ID, res.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to store photo url: %w", err)
	}
	a.FotoURL = res.URL

	s.recorder.Record(ctx, actor, event)
	return a, nil
}

// Delete removes an affiliate with its historial and registry row in one
// transaction, then leaves a deleted tombstone in the historial.
func (s *affiliateService) Delete(ctx context.Context, actor models.Actor, id string) error {
	a, err := s.manageable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repos.Affiliate.Delete(ctx, a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete affiliate: %w", err)
	}

	tombstone := audit.Deleted(a)
	s.runner.Go("historial_tombstone", func(ctx context.Context) error {
		return s.recorder.Record(ctx, actor, tombstone).Err
	})

	s.log.Info().
		Str("affiliate_id", a.ID).
		Str("cedula", a.Cedula).
		Bool("district_president", a.IsDistrictPresident()).
		Str("actor", actor.DisplayName()).
		Msg("Affiliate deleted")

	return nil
}

// History returns the historial of an affiliate, newest first
func (s *affiliateService) History(ctx context.Context, actor models.Actor, id string) ([]models.AuditEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	events, err := s.repos.Audit.ListByAffiliate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load historial: %w", err)
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events, nil
}

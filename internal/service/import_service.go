package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/audit"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/spreadsheet"
	"github.com/crm-electoral-api/internal/validation"
)

// insertFailedMessage is reported for a row whose insert failed for a reason other than a duplicate
const insertFailedMessage = "Error al guardar el registro"

// importService is the concrete implementation of ImportService
type importService struct {
	repos     *repository.Repositories
	recorder  *audit.Recorder
	validator *validation.Validator
	results   *resultStore
	cfg       *config.Config
	log       zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(
	repos *repository.Repositories,
	recorder *audit.Recorder,
	validator *validation.Validator,
	results *resultStore,
	cfg *config.Config,
	log zerolog.Logger,
) *importService {
	return &importService{
		repos:     repos,
		recorder:  recorder,
		validator: validator,
		results:   results,
		cfg:       cfg,
		log:       log.With().Str("service", "import").Logger(),
	}
}

// CreateImportJob parses the uploaded file once to reject empty or unreadable
// files up front, then queues a job for the processor.
func (s *importService) CreateImportJob(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error) {
	if !actor.IsAdmin() && !actor.IsOperator() {
		return nil, ErrForbidden
	}
	if actor.IsOperator() && actor.Seccional == "" {
		return nil, ErrForbidden
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repos.Job.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			if !existing.VisibleTo(actor) {
				return nil, ErrForbidden
			}
			return existing, nil
		}
	}

	sheet, err := s.readSheet(req.FileName, req.FilePath)
	if err != nil {
		return nil, err
	}
	if sheet.Empty() {
		return nil, ErrEmptyFile
	}

	job := &models.Job{
		ID:             uuid.New().String(),
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FileName:       req.FileName,
		FilePath:       req.FilePath,
		ActorName:      actor.DisplayName(),
		ActorRole:      actor.Role,
		ActorSeccional: actor.Seccional,
		TotalRecords:   len(sheet.Rows),
		CreatedAt:      time.Now(),
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("file", job.FileName).
		Int("rows", job.TotalRecords).
		Str("actor", job.ActorName).
		Msg("Import job created")

	return job, nil
}

func (s *importService) readSheet(name, path string) (*spreadsheet.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	sheet, err := spreadsheet.Read(name, data)
	if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
		return nil, invalid("file", "Formato no soportado, usa .xlsx o .csv")
	}
	if err != nil {
		return nil, invalid("file", "No se pudo leer el archivo")
	}
	return sheet, nil
}

// ProcessImport inserts the rows of a job one at a time in file order.
// A failing row is recorded and skipped; it never aborts the batch.
func (s *importService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &startTime
	}
	job.Status = models.JobStatusProcessing

	s.log.Info().
		Str("job_id", job.ID).
		Str("file", job.FileName).
		Msg("Starting import processing")

	err := s.processRows(ctx, job)

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	if job.ProcessedCount > 0 && duration.Seconds() > 0 {
		job.RowsPerSec = float64(job.ProcessedCount) / duration.Seconds()
	}
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var errorRate float64
	if job.TotalRecords > 0 {
		errorRate = float64(job.FailedCount) / float64(job.TotalRecords) * 100
	}

	if err != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = err.Error()
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Status = models.JobStatusCompleted
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRecords).
			Int("successful", job.SuccessfulCount).
			Int("failed", job.FailedCount).
			Float64("error_rate_pct", errorRate).
			Int64("duration_ms", job.DurationMs).
			Float64("rows_per_sec", job.RowsPerSec).
			Msg("Import completed")
	}

	// The job row must reach a final state even when ctx was cancelled mid-run
	if uerr := s.repos.Job.Update(context.WithoutCancel(ctx), job); uerr != nil {
		s.log.Error().Err(uerr).Str("job_id", job.ID).Msg("Failed to store final job state")
	}

	if rerr := os.Remove(job.FilePath); rerr != nil && !os.IsNotExist(rerr) {
		s.log.Warn().Err(rerr).Str("job_id", job.ID).Msg("Failed to remove upload")
	}

	return err
}

func (s *importService) processRows(ctx context.Context, job *models.Job) error {
	sheet, err := s.readSheet(job.FileName, job.FilePath)
	if err != nil {
		return err
	}
	if sheet.Empty() {
		return ErrEmptyFile
	}

	job.TotalRecords = len(sheet.Rows)
	actor := job.Actor()

	for _, row := range sheet.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec := sheet.Record(row)
		result := s.importRow(ctx, actor, &rec, row.Number)
		s.results.Append(job.ID, result)

		job.ProcessedCount++
		if result.Success {
			job.SuccessfulCount++
		} else {
			job.FailedCount++
		}

		if err := s.repos.Job.UpdateProgress(ctx, job); err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID).Int("row", row.Number).Msg("Failed to update job progress")
		}
	}

	return nil
}

// importRow runs the validate, insert and log cycle for one row
func (s *importService) importRow(ctx context.Context, actor models.Actor, rec *models.AffiliateRow, number int) models.ImportRowResult {
	result := models.ImportRowResult{Row: number}

	errs := s.validator.ValidateRow(rec)
	a, convErrs := s.validator.RowToAffiliate(rec, actor)
	errs = append(errs, convErrs...)
	result.Data = a
	if len(errs) > 0 {
		result.Error = validation.Join(errs)
		return result
	}

	a.ID = uuid.New().String()
	a.CreatedAt = time.Now()

	if err := s.repos.Affiliate.Create(ctx, a); err != nil {
		if field, ok := repository.DuplicateField(err); ok {
			result.Error = DuplicateMessage(field)
		} else {
			s.log.Warn().Err(err).Int("row", number).Msg("Import row insert failed")
			result.Error = insertFailedMessage
		}
		return result
	}

	s.recorder.Record(ctx, actor, audit.Imported(a))
	result.Success = true
	return result
}

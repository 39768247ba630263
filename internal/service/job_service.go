package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
)

// jobService is the concrete implementation of JobService
type jobService struct {
	jobRepo       repository.JobRepository
	importService ImportService
	results       *resultStore
	pollInterval  time.Duration
	log           zerolog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	running       bool
	mu            sync.Mutex
	// Semaphore: buffered channel limiting concurrently running imports
	sem chan struct{}
}

// newJobService creates a new JobService with a worker pool sized for I/O-bound work
func newJobService(jobRepo repository.JobRepository, results *resultStore, cfg *config.Config, log zerolog.Logger) *jobService {
	// Imports spend their time waiting on the database, so allow more workers than cores
	maxWorkers := runtime.NumCPU() * 4
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	if maxWorkers > 32 {
		maxWorkers = 32
	}
	if cfg.Import.Workers > 0 {
		maxWorkers = cfg.Import.Workers
	}

	pollInterval := cfg.Import.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing import worker pool")

	return &jobService{
		jobRepo:      jobRepo,
		results:      results,
		pollInterval: pollInterval,
		log:          log.With().Str("service", "job").Logger(),
		sem:          make(chan struct{}, maxWorkers),
	}
}

// SetImportService sets the import service for job processing
func (s *jobService) SetImportService(importService ImportService) {
	s.importService = importService
}

// StartProcessor polls for pending imports until ctx is cancelled or StopProcessor is called
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("Job processor started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs()
		}
	}
}

// StopProcessor stops the background job processor and waits for running imports
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Job processor stopped")
}

// processPendingJobs starts every pending import that can be claimed
func (s *jobService) processPendingJobs() {
	jobs, err := s.jobRepo.GetPendingJobs(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range jobs {
		// Blocks while all workers are busy
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		marked, err := s.jobRepo.MarkJobAsProcessing(s.ctx, job.ID)
		if err != nil || !marked {
			<-s.sem
			continue // Another instance already claimed it
		}

		s.wg.Add(1)
		go func(j *models.Job) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("job_id", j.ID).
						Msg("Job processing panicked - recovered")
					j.Status = models.JobStatusFailed
					j.ErrorMessage = "internal error"
					if err := s.jobRepo.Update(context.WithoutCancel(s.ctx), j); err != nil {
						s.log.Error().Err(err).Str("job_id", j.ID).Msg("Failed to mark job as failed")
					}
				}
			}()
			s.processJob(j)
		}(job)
	}
}

// processJob runs a single import
func (s *jobService) processJob(job *models.Job) {
	select {
	case <-s.ctx.Done():
		s.log.Warn().Str("job_id", job.ID).Msg("Job processing cancelled due to shutdown")
		return
	default:
	}

	if s.importService == nil {
		s.log.Error().Str("job_id", job.ID).Msg("No import service configured")
		return
	}

	s.log.Info().Str("job_id", job.ID).Str("file", job.FileName).Msg("Processing job")
	if err := s.importService.ProcessImport(s.ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import processing failed")
	}
}

// GetJob retrieves a job with its progress and per-row results
func (s *jobService) GetJob(ctx context.Context, actor models.Actor, id string) (*models.JobResponse, error) {
	job, err := s.visibleJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	response := &models.JobResponse{
		Job:        *job,
		Progress:   job.Progress(),
		Results:    s.results.Get(job.ID),
		ErrorCount: job.FailedCount,
	}

	if job.FailedCount > 0 {
		response.ErrorReport = "/v1/affiliates/imports/" + job.ID + "/errors"
	}

	return response, nil
}

// GetJobErrors returns the failed rows of a job still held in memory
func (s *jobService) GetJobErrors(ctx context.Context, actor models.Actor, id string) ([]models.ImportRowResult, error) {
	if _, err := s.visibleJob(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.results.Failed(id), nil
}

// visibleJob loads a job the actor may read; jobs outside its reach are reported as missing
func (s *jobService) visibleJob(ctx context.Context, actor models.Actor, id string) (*models.Job, error) {
	if !actor.IsAdmin() && !actor.IsOperator() {
		return nil, ErrForbidden
	}

	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil || !job.VisibleTo(actor) {
		return nil, ErrNotFound
	}
	return job, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/internal/models"
)

const jobColumns = `id, status, idempotency_key, file_name, file_path, actor_name, actor_role,
	actor_seccional, total_records, processed_count, successful_count, failed_count, duration_ms,
	rows_per_sec, error_message, created_at, started_at, completed_at`

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO import_jobs (id, status, idempotency_key, file_name, file_path, actor_name,
			actor_role, actor_seccional, total_records, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Status, nullString(job.IdempotencyKey), job.FileName, job.FilePath,
		job.ActorName, job.ActorRole, nullString(job.ActorSeccional), job.TotalRecords, job.CreatedAt,
	)
	return err
}

// Update updates job status and counters
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE import_jobs SET
			status = $1, total_records = $2, processed_count = $3, successful_count = $4,
			failed_count = $5, duration_ms = $6, rows_per_sec = $7, error_message = $8,
			started_at = $9, completed_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status, job.TotalRecords, job.ProcessedCount, job.SuccessfulCount,
		job.FailedCount, job.DurationMs, job.RowsPerSec, nullString(job.ErrorMessage),
		job.StartedAt, job.CompletedAt, job.ID,
	)
	return err
}

// UpdateProgress writes only the running counters, called after every row
func (r *jobRepo) UpdateProgress(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE import_jobs SET processed_count = $1, successful_count = $2, failed_count = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, job.ProcessedCount, job.SuccessfulCount, job.FailedCount, job.ID)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id)
}

// GetByIdempotencyKey retrieves a job by idempotency key
func (r *jobRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE idempotency_key = $1`, key)
}

func (r *jobRepo) getOne(ctx context.Context, query string, arg string) (*models.Job, error) {
	var job models.Job
	var idempotencyKey, actorSeccional, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&job.ID, &job.Status, &idempotencyKey, &job.FileName, &job.FilePath, &job.ActorName,
		&job.ActorRole, &actorSeccional, &job.TotalRecords, &job.ProcessedCount,
		&job.SuccessfulCount, &job.FailedCount, &job.DurationMs, &job.RowsPerSec,
		&errorMessage, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.IdempotencyKey = idempotencyKey.String
	job.ActorSeccional = actorSeccional.String
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// pendingJobsQuery takes no row locks; workers claim a job with MarkJobAsProcessing
const pendingJobsQuery = `
	SELECT id, file_name, file_path, actor_name, actor_role, actor_seccional, total_records, created_at
	FROM import_jobs WHERE status = 'pending'
	ORDER BY created_at
`

// GetPendingJobs retrieves all pending jobs
func (r *jobRepo) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, pendingJobsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		var actorSeccional sql.NullString
		err := rows.Scan(&job.ID, &job.FileName, &job.FilePath, &job.ActorName, &job.ActorRole,
			&actorSeccional, &job.TotalRecords, &job.CreatedAt)
		if err != nil {
			continue
		}
		job.ActorSeccional = actorSeccional.String
		job.Status = models.JobStatusPending
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// MarkJobAsProcessing atomically marks a pending job as processing
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE import_jobs SET status = 'processing', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// CountByStatus returns job counts per status for the metrics endpoint
func (r *jobRepo) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM import_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

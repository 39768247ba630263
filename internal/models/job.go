package models

import (
	"time"
)

// JobStatus represents the status of an import job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a bulk affiliate import
type Job struct {
	ID              string     `json:"job_id" db:"id"`
	Status          JobStatus  `json:"status" db:"status"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	FileName        string     `json:"file_name" db:"file_name"`
	FilePath        string     `json:"-" db:"file_path"`
	ActorName       string     `json:"actor_name" db:"actor_name"`
	ActorRole       ActorRole  `json:"-" db:"actor_role"`
	ActorSeccional  string     `json:"-" db:"actor_seccional"`
	TotalRecords    int        `json:"total_records" db:"total_records"`
	ProcessedCount  int        `json:"processed" db:"processed_count"`
	SuccessfulCount int        `json:"successful" db:"successful_count"`
	FailedCount     int        `json:"failed" db:"failed_count"`
	DurationMs      int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	RowsPerSec      float64    `json:"rows_per_sec,omitempty" db:"rows_per_sec"`
	ErrorMessage    string     `json:"error,omitempty" db:"error_message"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Actor rebuilds the importing actor stored with the job
func (j *Job) Actor() Actor {
	return Actor{Name: j.ActorName, Role: j.ActorRole, Seccional: j.ActorSeccional}
}

// VisibleTo reports whether actor may read the job and its row results.
// Admin imports may span every chapter, so Operators only see jobs another
// Operator of their own chapter started.
func (j *Job) VisibleTo(actor Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsOperator() &&
		actor.Seccional != "" &&
		j.ActorRole == ActorOperator &&
		j.ActorSeccional == actor.Seccional
}

// Progress is the share of rows processed, 0-100
func (j *Job) Progress() int {
	if j.TotalRecords <= 0 {
		if j.Status == JobStatusCompleted {
			return 100
		}
		return 0
	}
	return j.ProcessedCount * 100 / j.TotalRecords
}

// ImportRequest describes an uploaded import file
type ImportRequest struct {
	FileName       string
	FilePath       string
	IdempotencyKey string
}

// ImportRowResult is the in-memory outcome of one spreadsheet row
type ImportRowResult struct {
	Row     int        `json:"row"`
	Success bool       `json:"success"`
	Data    *Affiliate `json:"data"`
	Error   string     `json:"error,omitempty"`
}

// ImportSummary aggregates the outcomes of one import run
type ImportSummary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []ImportRowResult `json:"results"`
}

// JobResponse is the API response for job status
type JobResponse struct {
	Job
	Progress    int               `json:"progress"`
	Results     []ImportRowResult `json:"results,omitempty"`
	ErrorCount  int               `json:"error_count,omitempty"`
	ErrorReport string            `json:"error_report_url,omitempty"`
}

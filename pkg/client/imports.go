package client

import (
	"context"
	"time"

	"github.com/crm-electoral-api/internal/models"
)

// DefaultPollInterval is how often WaitForImport asks for job status
const DefaultPollInterval = time.Second

// ImportStatuser reads import job status; *Client implements it
type ImportStatuser interface {
	ImportStatus(ctx context.Context, jobID string) (*models.JobResponse, error)
}

// WaitForImport polls a job until it completes or fails. When at least one
// row was inserted the browser refreshes its current page so the new
// affiliates show up; a run where every row failed leaves the listing alone.
func WaitForImport(ctx context.Context, s ImportStatuser, b *Browser, jobID string, interval time.Duration) (*models.JobResponse, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := s.ImportStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if finished(status.Status) {
			if status.SuccessfulCount > 0 && b != nil {
				b.Refresh()
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func finished(s models.JobStatus) bool {
	return s == models.JobStatusCompleted || s == models.JobStatusFailed
}

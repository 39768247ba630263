package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/spreadsheet"
)

// ExportFile is a generated workbook ready for download
type ExportFile struct {
	Name  string
	Data  []byte
	Count int
}

// ContentTypeXLSX is the media type of an export workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	cfg   *config.Config
	now   func() time.Time
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, cfg *config.Config, now func() time.Time, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		cfg:   cfg,
		now:   now,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// Export renders every affiliate matching the filter, ignoring its page.
// Nothing is generated when no rows match.
func (s *exportService) Export(ctx context.Context, actor models.Actor, filter search.Filter) (*ExportFile, error) {
	now := s.now()
	c := search.Resolve(filter, actor, now).Unpaged()

	items, err := s.repos.Affiliate.ListAll(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch affiliates for export: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoRows
	}

	startTime := time.Now()
	data, err := spreadsheet.WriteAffiliates(items, spreadsheet.ExportOptions{
		SheetName:   s.cfg.Export.SheetName,
		HeaderColor: s.cfg.Export.HeaderColor,
		Location:    now.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate workbook: %w", err)
	}

	s.log.Info().
		Str("actor", actor.DisplayName()).
		Int("rows", len(items)).
		Int("bytes", len(data)).
		Dur("duration", time.Since(startTime)).
		Msg("Export generated")

	return &ExportFile{
		Name:  spreadsheet.FileName(s.cfg.Export.FilePrefix, now),
		Data:  data,
		Count: len(items),
	}, nil
}

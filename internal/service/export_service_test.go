package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/service"
	"github.com/crm-electoral-api/internal/spreadsheet"
)

func TestExportService_AllMatchingRowsIgnoringPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedRecipients(t, h, 14, "Madrid", 0)
	seedRecipients(t, h, 3, "Zurich", 100)

	file, err := h.svc.Export.Export(ctx, admin, search.Filter{Seccional: "Madrid", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 14, file.Count)
	assert.True(t, strings.HasPrefix(file.Name, "Afiliados_FP_Europa_"))
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))

	sheet, err := spreadsheet.Read(file.Name, file.Data)
	require.NoError(t, err)
	assert.Len(t, sheet.Rows, 14)
}

func TestExportService_OperatorExportIsScoped(t *testing.T) {
	h := newHarness(t)
	seedRecipients(t, h, 2, "Madrid", 0)
	seedRecipients(t, h, 3, "Zurich", 100)

	file, err := h.svc.Export.Export(context.Background(), opMadrid, search.Filter{Seccional: search.AllSeccionales})
	require.NoError(t, err)
	assert.Equal(t, 2, file.Count)
}

func TestExportService_NoRowsGeneratesNothing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repos.Affiliate.Create(context.Background(), &models.Affiliate{
		ID: "old", Cedula: "1", Seccional: "Madrid", CreatedAt: time.Now().AddDate(0, 0, -40),
	}))

	_, err := h.svc.Export.Export(context.Background(), admin, search.Filter{DateRange: search.Date30Days})
	assert.ErrorIs(t, err, service.ErrNoRows)
}

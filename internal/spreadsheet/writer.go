package spreadsheet

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/crm-electoral-api/internal/models"
)

// NotAvailable fills export cells for missing optional values
const NotAvailable = "N/A"

// Column is one export column
type Column struct {
	Header string
	Width  float64
}

// ExportColumns is the fixed export layout
var ExportColumns = []Column{
	{"N°", 5},
	{"Nombre", 15},
	{"Apellidos", 15},
	{"Cédula", 15},
	{"Fecha Nacimiento", 15},
	{"Email", 25},
	{"Teléfono", 15},
	{"Seccional", 12},
	{"Cargo Organizacional", 20},
	{"Role Sistema", 12},
	{"Estado", 10},
	{"Fecha Registro", 12},
}

// ExportOptions controls workbook styling
type ExportOptions struct {
	SheetName   string
	HeaderColor string
	Location    *time.Location
}

// FileName is the download name for an export generated at now
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("2006-01-02"))
}

// ExportRow reshapes an affiliate into the ordered export cells
func ExportRow(seq int, a *models.Affiliate, loc *time.Location) []interface{} {
	if loc == nil {
		loc = time.UTC
	}
	birth := NotAvailable
	if a.FechaNacimiento != nil {
		birth = a.FechaNacimiento.Format(models.DateLayout)
	}
	return []interface{}{
		seq,
		a.Nombre,
		a.Apellidos,
		a.Cedula,
		birth,
		orNA(a.Email),
		orNA(a.Telefono),
		a.Seccional,
		orNA(a.CargoOrganizacional),
		string(a.Role),
		a.StatusLabel(),
		a.CreatedAt.In(loc).Format("2/1/2006"),
	}
}

// WriteAffiliates renders affiliates into a single-sheet xlsx workbook
func WriteAffiliates(items []*models.Affiliate, opts ExportOptions) ([]byte, error) {
	if opts.SheetName == "" {
		opts.SheetName = "Afiliados"
	}
	if opts.HeaderColor == "" {
		opts.HeaderColor = "005C2B"
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := opts.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(ExportColumns))
	for i, col := range ExportColumns {
		header[i] = col.Header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{opts.HeaderColor}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(ExportColumns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, a := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := ExportRow(i+1, a, opts.Location)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

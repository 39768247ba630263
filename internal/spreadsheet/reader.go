// Package spreadsheet reads affiliate import files and writes affiliate
// export workbooks. Both directions share one column vocabulary so an
// exported workbook can be imported again.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv
var ErrUnsupportedFormat = errors.New("unsupported file format, use .xlsx or .csv")

// Row is one data row with its 1-based row number in the source file
type Row struct {
	Number int
	Cells  []string
}

// Sheet is the parsed first worksheet of an import file
type Sheet struct {
	Header []string
	Rows   []Row
	index  map[string]int
}

// Empty reports whether the sheet has no data rows (header only or nothing)
func (s *Sheet) Empty() bool {
	return s == nil || len(s.Rows) == 0
}

// Record maps a data row onto the affiliate columns
func (s *Sheet) Record(r Row) models.AffiliateRow {
	if s.index == nil {
		s.index = HeaderIndex(s.Header)
	}
	get := func(key string) string { return Field(r.Cells, s.index, key) }
	return models.AffiliateRow{
		Nombre:              get(ColNombre),
		Apellidos:           get(ColApellidos),
		Cedula:              get(ColCedula),
		FechaNacimiento:     get(ColFechaNacimiento),
		Email:               get(ColEmail),
		Telefono:            get(ColTelefono),
		Seccional:           get(ColSeccional),
		CargoOrganizacional: get(ColCargo),
		Role:                get(ColRole),
		Validado:            get(ColValidado),
	}
}

// IsSupported reports whether a file name has an importable extension
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// Read parses the first worksheet of an xlsx file, or a csv file, chosen by extension
func Read(name string, data []byte) (*Sheet, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(data)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(rows), nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// Excel on Windows saves CSV as cp1252
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = detectDelimiter(data)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// detectDelimiter picks ';' for files exported with a Spanish locale
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func buildSheet(rows [][]string) *Sheet {
	s := &Sheet{}
	for i, cells := range rows {
		if isBlank(cells) {
			continue
		}
		if s.Header == nil {
			s.Header = cells
			continue
		}
		s.Rows = append(s.Rows, Row{Number: i + 1, Cells: cells})
	}
	s.index = HeaderIndex(s.Header)
	return s
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Canonical column keys
const (
	ColNombre          = "nombre"
	ColApellidos       = "apellidos"
	ColCedula          = "cedula"
	ColFechaNacimiento = "fecha_nacimiento"
	ColEmail           = "email"
	ColTelefono        = "telefono"
	ColSeccional       = "seccional"
	ColCargo           = "cargo_organizacional"
	ColRole            = "role"
	ColValidado        = "validado"
)

var headerAliases = map[string]string{
	"nombres":             ColNombre,
	"apellido":            ColApellidos,
	"documento":           ColCedula,
	"fecha_de_nacimiento": ColFechaNacimiento,
	"nacimiento":          ColFechaNacimiento,
	"correo":              ColEmail,
	"correo_electronico":  ColEmail,
	"e_mail":              ColEmail,
	"celular":             ColTelefono,
	"movil":               ColTelefono,
	"cargo":               ColCargo,
	"rol":                 ColRole,
	"role_sistema":        ColRole,
	"rol_sistema":         ColRole,
	"estado":              ColValidado,
}

// CanonicalHeader lowercases, trims and strips accents from a header cell,
// joins words with underscores and resolves known aliases.
func CanonicalHeader(h string) string {
	key := strings.Join(strings.FieldsFunc(search.Normalize(h), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
	if alias, ok := headerAliases[key]; ok {
		return alias
	}
	return key
}

// HeaderIndex maps canonical column names to their position; the first occurrence wins
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := CanonicalHeader(h)
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// Field returns the trimmed cell for a column, treating the export placeholder as empty
func Field(cells []string, idx map[string]int, key string) string {
	i, ok := idx[key]
	if !ok || i >= len(cells) {
		return ""
	}
	v := strings.TrimSpace(cells[i])
	if v == NotAvailable {
		return ""
	}
	return v
}

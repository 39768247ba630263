// Package search turns a client filter selection into the effective
// affiliate query. Resolution is a pure function of the filter, the actor
// and the clock, so the Operator chapter restriction can be tested without
// a database.
package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crm-electoral-api/internal/models"
)

// PageSize is the fixed number of affiliates per listing page
const PageSize = 12

// Sentinel "all" values sent by clients
const (
	AllSeccionales = "Todas"
	AllRoles       = "Todos"
	AllStatus      = "Todos"
)

// Validation status filter values
const (
	StatusValidated = "Validado"
	StatusPending   = "Pendiente"
)

// Date range filter values
const (
	DateAll    = "todos"
	Date7Days  = "7days"
	Date30Days = "30days"
	Date90Days = "90days"
	DateCustom = "custom"
)

// Sort orders
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortAZ     = "a-z"
	SortZA     = "z-a"
)

// Filter is the selection a client sends with a listing or export request
type Filter struct {
	Query     string `form:"q" json:"q"`
	Seccional string `form:"seccional" json:"seccional"`
	Role      string `form:"role" json:"role"`
	Status    string `form:"status" json:"status"`
	DateRange string `form:"date" json:"date"`
	From      string `form:"from" json:"from"`
	To        string `form:"to" json:"to"`
	Sort      string `form:"sort" json:"sort"`
	Page      int    `form:"page" json:"page"`
}

// SameSelection reports whether two filters differ at most in their page
func (f Filter) SameSelection(other Filter) bool {
	f.Page, other.Page = 0, 0
	return f == other
}

// WithSelection returns next with its page reset to 1 whenever any
// non-page dimension differs from f.
func (f Filter) WithSelection(next Filter) Filter {
	if !f.SameSelection(next) {
		next.Page = 1
	}
	if next.Page < 1 {
		next.Page = 1
	}
	return next
}

// Order is an ORDER BY column and direction
type Order struct {
	Column string
	Desc   bool
}

// Criteria is the effective query after defaults and the security floor are applied
type Criteria struct {
	// Term is the diacritic-free lowercase search text matched against name columns
	Term string
	// CedulaTerm is the trimmed search text matched case-insensitively against cedula
	CedulaTerm string
	// Seccional is empty for every chapter
	Seccional string
	// NoAccess is set when the actor may not see any chapter
	NoAccess    bool
	Role        string
	Validado    *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Order       Order
	Page        int
	Offset      int
	// Limit is 0 for unpaginated queries
	Limit int
}

// Resolve computes the effective criteria for a filter requested by actor at now.
// Operators are always confined to their own chapter.
func Resolve(f Filter, actor models.Actor, now time.Time) Criteria {
	c := Criteria{}

	if q := strings.TrimSpace(f.Query); q != "" {
		c.Term = Normalize(q)
		c.CedulaTerm = strings.ToLower(q)
	}

	sec := strings.TrimSpace(f.Seccional)
	if sec != "" && sec != AllSeccionales {
		c.Seccional = sec
	}
	if actor.IsOperator() {
		c.Seccional = actor.Seccional
		c.NoAccess = actor.Seccional == ""
	}

	if role := strings.TrimSpace(f.Role); role != "" && role != AllRoles {
		c.Role = role
	}

	switch strings.TrimSpace(f.Status) {
	case StatusValidated:
		v := true
		c.Validado = &v
	case StatusPending:
		v := false
		c.Validado = &v
	}

	c.CreatedFrom, c.CreatedTo = dateBounds(f, now)
	c.Order = orderFor(f.Sort)

	c.Page = f.Page
	if c.Page < 1 {
		c.Page = 1
	}
	c.Offset, _ = PageRange(c.Page)
	c.Limit = PageSize

	return c
}

// Unpaged returns the same criteria without a row range
func (c Criteria) Unpaged() Criteria {
	c.Page, c.Offset, c.Limit = 0, 0, 0
	return c
}

// PageRange converts a 1-based page to the zero-based inclusive row range
func PageRange(page int) (from, to int) {
	if page < 1 {
		page = 1
	}
	from = (page - 1) * PageSize
	return from, from + PageSize - 1
}

func dateBounds(f Filter, now time.Time) (*time.Time, *time.Time) {
	days := 0
	switch strings.TrimSpace(f.DateRange) {
	case Date7Days:
		days = 7
	case Date30Days:
		days = 30
	case Date90Days:
		days = 90
	case DateCustom:
		return customBounds(f.From, f.To, now.Location())
	default:
		return nil, nil
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &cutoff, nil
}

func customBounds(from, to string, loc *time.Location) (*time.Time, *time.Time) {
	var start, end *time.Time
	if t, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(from), loc); err == nil {
		start = &t
	}
	if t, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(to), loc); err == nil {
		e := t.Add(24*time.Hour - time.Millisecond)
		end = &e
	}
	return start, end
}

func orderFor(s string) Order {
	switch strings.TrimSpace(s) {
	case SortOldest:
		return Order{Column: "created_at"}
	case SortAZ:
		return Order{Column: "nombre"}
	case SortZA:
		return Order{Column: "nombre", Desc: true}
	default:
		return Order{Column: "created_at", Desc: true}
	}
}

// Where renders the criteria as a SQL WHERE clause with $n placeholders
// starting at $1. It returns an empty clause when nothing filters.
func (c Criteria) Where() (string, []interface{}) {
	if c.NoAccess {
		return "WHERE FALSE", nil
	}

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if c.Term != "" {
		p := arg("%" + escapeLike(c.Term) + "%")
		q := arg("%" + escapeLike(c.CedulaTerm) + "%")
		conds = append(conds, fmt.Sprintf(
			"(nombre_search LIKE %s OR apellidos_search LIKE %s OR (nombre_search || ' ' || apellidos_search) LIKE %s OR cedula ILIKE %s)",
			p, p, p, q))
	}
	if c.Seccional != "" {
		conds = append(conds, "seccional = "+arg(c.Seccional))
	}
	if c.Role != "" {
		conds = append(conds, "role = "+arg(c.Role))
	}
	if c.Validado != nil {
		conds = append(conds, "validado = "+arg(*c.Validado))
	}
	if c.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+arg(*c.CreatedFrom))
	}
	if c.CreatedTo != nil {
		conds = append(conds, "created_at <= "+arg(*c.CreatedTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// OrderBy renders the sort order with a stable tiebreaker
func (c Criteria) OrderBy() string {
	o := c.Order
	if o.Column == "" {
		o = orderFor("")
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", o.Column, dir)
}

// Matches is the in-memory equivalent of Where
func (c Criteria) Matches(a *models.Affiliate) bool {
	if c.NoAccess {
		return false
	}
	if c.Term != "" {
		nombre, apellidos := Normalize(a.Nombre), Normalize(a.Apellidos)
		if !strings.Contains(nombre, c.Term) &&
			!strings.Contains(apellidos, c.Term) &&
			!strings.Contains(nombre+" "+apellidos, c.Term) &&
			!strings.Contains(strings.ToLower(a.Cedula), c.CedulaTerm) {
			return false
		}
	}
	if c.Seccional != "" && a.Seccional != c.Seccional {
		return false
	}
	if c.Role != "" && string(a.Role) != c.Role {
		return false
	}
	if c.Validado != nil && a.Validado != *c.Validado {
		return false
	}
	if c.CreatedFrom != nil && a.CreatedAt.Before(*c.CreatedFrom) {
		return false
	}
	if c.CreatedTo != nil && a.CreatedAt.After(*c.CreatedTo) {
		return false
	}
	return true
}

// Sort orders affiliates in place the way OrderBy does
func (c Criteria) Sort(items []*models.Affiliate) {
	o := c.Order
	if o.Column == "" {
		o = orderFor("")
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var less, equal bool
		switch o.Column {
		case "nombre":
			less, equal = a.Nombre < b.Nombre, a.Nombre == b.Nombre
		default:
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			return a.ID < b.ID
		}
		if o.Desc {
			return !less
		}
		return less
	})
}

// NewPage wraps one page of results with the counters the listing view shows
func NewPage(items []*models.Affiliate, total int, c Criteria) *models.AffiliatePage {
	if items == nil {
		items = []*models.Affiliate{}
	}
	page := c.Page
	if page < 1 {
		page = 1
	}
	p := &models.AffiliatePage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   PageSize,
		TotalPages: (total + PageSize - 1) / PageSize,
	}
	if len(items) > 0 {
		p.ShowingFrom = c.Offset + 1
		p.ShowingTo = c.Offset + len(items)
	}
	return p
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

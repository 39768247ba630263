package models

import (
	"time"
)

// Acta is a vote-tally record for one polling table
type Acta struct {
	ID         string    `json:"id" db:"id"`
	Seccional  string    `json:"seccional" db:"seccional"`
	Ciudad     string    `json:"ciudad" db:"ciudad"`
	Recinto    string    `json:"recinto" db:"recinto"`
	Colegio    string    `json:"colegio" db:"colegio"`
	VotosFP    int       `json:"votos_fp" db:"votos_fp"`
	VotosPRM   int       `json:"votos_prm" db:"votos_prm"`
	VotosPLD   int       `json:"votos_pld" db:"votos_pld"`
	VotosOtros int       `json:"votos_otros" db:"votos_otros"`
	VotosNulos int       `json:"votos_nulos" db:"votos_nulos"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ActaScope selects a node of the seccional > ciudad > recinto > colegio hierarchy.
// Empty trailing fields widen the scope.
type ActaScope struct {
	Seccional string `json:"seccional" form:"seccional"`
	Ciudad    string `json:"ciudad" form:"ciudad"`
	Recinto   string `json:"recinto" form:"recinto"`
	Colegio   string `json:"colegio" form:"colegio"`
	ActaID    string `json:"acta_id" form:"acta_id"`
}

// Drill-down levels
const (
	LevelSeccionales = "seccionales"
	LevelCiudades    = "ciudades"
	LevelRecintos    = "recintos"
	LevelColegios    = "colegios"
)

// Level returns the drill-down level the scope is browsing
func (s ActaScope) Level() string {
	switch {
	case s.Seccional == "":
		return LevelSeccionales
	case s.Ciudad == "":
		return LevelCiudades
	case s.Recinto == "":
		return LevelRecintos
	default:
		return LevelColegios
	}
}

// Contains reports whether an acta falls under the scope
func (s ActaScope) Contains(a *Acta) bool {
	if s.ActaID != "" {
		return a.ID == s.ActaID
	}
	if s.Seccional != "" && a.Seccional != s.Seccional {
		return false
	}
	if s.Ciudad != "" && a.Ciudad != s.Ciudad {
		return false
	}
	if s.Recinto != "" && a.Recinto != s.Recinto {
		return false
	}
	if s.Colegio != "" && a.Colegio != s.Colegio {
		return false
	}
	return true
}

// VoteTotals sums the votes of a set of actas
type VoteTotals struct {
	FP    int `json:"fp"`
	PRM   int `json:"prm"`
	PLD   int `json:"pld"`
	Otros int `json:"otros"`
	Nulos int `json:"nulos"`
}

// Add accumulates an acta into the totals
func (t *VoteTotals) Add(a *Acta) {
	t.FP += a.VotosFP
	t.PRM += a.VotosPRM
	t.PLD += a.VotosPLD
	t.Otros += a.VotosOtros
	t.Nulos += a.VotosNulos
}

// ActaSubItem is one child node of the current drill-down level
type ActaSubItem struct {
	Name   string     `json:"name"`
	Count  int        `json:"count"`
	Totals VoteTotals `json:"totals"`
}

// ActaView is the drill-down result for one scope
type ActaView struct {
	Level    string        `json:"level"`
	Scope    ActaScope     `json:"scope"`
	Totals   VoteTotals    `json:"totals"`
	SubItems []ActaSubItem `json:"sub_items"`
	Actas    []*Acta       `json:"actas,omitempty"`
}

// CountBucket is a labelled count used by dashboard charts
type CountBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// GrowthPoint is one month of registrations with the running total
type GrowthPoint struct {
	Month  string `json:"date"`
	Nuevos int    `json:"nuevos"`
	Total  int    `json:"total"`
}

// PadronStats summarizes the affiliate registry for the dashboard
type PadronStats struct {
	Total       int           `json:"total"`
	BySeccional []CountBucket `json:"by_seccional"`
	ByRole      []CountBucket `json:"by_role"`
	Validated   int           `json:"validated"`
	Pending     int           `json:"pending"`
	Growth      []GrowthPoint `json:"growth"`
}

// AffiliateSnapshot is the slim projection the stats dashboard aggregates
type AffiliateSnapshot struct {
	Seccional string    `db:"seccional"`
	Role      Role      `db:"role"`
	Validado  bool      `db:"validado"`
	CreatedAt time.Time `db:"created_at"`
}

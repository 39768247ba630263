package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/repository"
)

const padronCachePrefix = "stats:padron:"

// statsService is the concrete implementation of StatsService
type statsService struct {
	repos *repository.Repositories
	cache *redis.Client
	ttl   time.Duration
	loc   *time.Location
	log   zerolog.Logger
}

// newStatsService creates a new StatsService; cache may be nil
func newStatsService(repos *repository.Repositories, cache *redis.Client, cfg *config.Config, log zerolog.Logger) *statsService {
	ttl := cfg.Redis.StatsTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &statsService{
		repos: repos,
		cache: cache,
		ttl:   ttl,
		loc:   cfg.Org.Location(),
		log:   log.With().Str("service", "stats").Logger(),
	}
}

// Padron summarizes the registry; Operators only see their own chapter
func (s *statsService) Padron(ctx context.Context, actor models.Actor) (*models.PadronStats, error) {
	seccional := ""
	if actor.IsOperator() {
		if actor.Seccional == "" {
			return nil, ErrForbidden
		}
		seccional = actor.Seccional
	}

	key := padronCachePrefix + "all"
	if seccional != "" {
		key = padronCachePrefix + seccional
	}
	if stats, ok := s.cached(ctx, key); ok {
		return stats, nil
	}

	snaps, err := s.repos.Affiliate.Snapshots(ctx, seccional)
	if err != nil {
		return nil, fmt.Errorf("failed to load padron: %w", err)
	}
	stats := BuildPadronStats(snaps, s.loc)

	s.store(ctx, key, stats)
	return stats, nil
}

func (s *statsService) cached(ctx context.Context, key string) (*models.PadronStats, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		}
		return nil, false
	}
	var stats models.PadronStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable stats cache entry")
		return nil, false
	}
	return &stats, true
}

func (s *statsService) store(ctx context.Context, key string, stats *models.PadronStats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
}

// BuildPadronStats aggregates snapshots into dashboard figures. Chapters and
// roles are ordered by count descending; growth is monthly in loc with a
// running total.
func BuildPadronStats(snaps []models.AffiliateSnapshot, loc *time.Location) *models.PadronStats {
	if loc == nil {
		loc = time.UTC
	}
	stats := &models.PadronStats{
		Total:       len(snaps),
		BySeccional: []models.CountBucket{},
		ByRole:      []models.CountBucket{},
		Growth:      []models.GrowthPoint{},
	}

	bySeccional := make(map[string]int)
	byRole := make(map[string]int)
	byMonth := make(map[string]int)

	for _, snap := range snaps {
		bySeccional[snap.Seccional]++
		byRole[string(snap.Role)]++
		byMonth[snap.CreatedAt.In(loc).Format("2006-01")]++
		if snap.Validado {
			stats.Validated++
		} else {
			stats.Pending++
		}
	}

	stats.BySeccional = buckets(bySeccional)
	stats.ByRole = buckets(byRole)

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	total := 0
	for _, m := range months {
		total += byMonth[m]
		stats.Growth = append(stats.Growth, models.GrowthPoint{Month: m, Nuevos: byMonth[m], Total: total})
	}

	return stats
}

func buckets(counts map[string]int) []models.CountBucket {
	out := make([]models.CountBucket, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.CountBucket{Name: name, Value: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Actas returns the drill-down view for a scope; Operators are pinned to their chapter
func (s *statsService) Actas(ctx context.Context, actor models.Actor, scope models.ActaScope) (*models.ActaView, error) {
	if actor.IsOperator() {
		if actor.Seccional == "" {
			return nil, ErrForbidden
		}
		scope.Seccional = actor.Seccional
	}
	scope.ActaID = ""

	actas, err := s.repos.Acta.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load actas: %w", err)
	}
	return BuildActaView(scope, actas), nil
}

// BuildActaView groups actas into the children of the scope's level. The top
// level always lists every chapter, with zeros for chapters without actas.
func BuildActaView(scope models.ActaScope, actas []*models.Acta) *models.ActaView {
	level := scope.Level()
	view := &models.ActaView{
		Level:    level,
		Scope:    scope,
		SubItems: []models.ActaSubItem{},
	}

	index := make(map[string]int)
	if level == models.LevelSeccionales {
		for _, sec := range models.Seccionales {
			index[sec] = len(view.SubItems)
			view.SubItems = append(view.SubItems, models.ActaSubItem{Name: sec})
		}
	}

	var extra []models.ActaSubItem
	extraIndex := make(map[string]int)
	for _, a := range actas {
		if !scope.Contains(a) {
			continue
		}
		view.Totals.Add(a)

		name := childName(level, a)
		if i, ok := index[name]; ok {
			view.SubItems[i].Count++
			view.SubItems[i].Totals.Add(a)
			continue
		}
		i, ok := extraIndex[name]
		if !ok {
			i = len(extra)
			extraIndex[name] = i
			extra = append(extra, models.ActaSubItem{Name: name})
		}
		extra[i].Count++
		extra[i].Totals.Add(a)
	}

	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	view.SubItems = append(view.SubItems, extra...)

	if level == models.LevelColegios {
		view.Actas = make([]*models.Acta, 0, len(actas))
		for _, a := range actas {
			if scope.Contains(a) {
				view.Actas = append(view.Actas, a)
			}
		}
	}

	return view
}

func childName(level string, a *models.Acta) string {
	switch level {
	case models.LevelSeccionales:
		return a.Seccional
	case models.LevelCiudades:
		return a.Ciudad
	case models.LevelRecintos:
		return a.Recinto
	default:
		return a.Colegio
	}
}

// CreateActa stores a vote tally for one polling table
func (s *statsService) CreateActa(ctx context.Context, actor models.Actor, a *models.Acta) (*models.Acta, error) {
	if !actor.IsAdmin() && !actor.IsOperator() {
		return nil, ErrForbidden
	}
	if actor.IsOperator() {
		if actor.Seccional == "" {
			return nil, ErrForbidden
		}
		a.Seccional = actor.Seccional
	}

	a.Seccional = strings.TrimSpace(a.Seccional)
	a.Ciudad = strings.TrimSpace(a.Ciudad)
	a.Recinto = strings.TrimSpace(a.Recinto)
	a.Colegio = strings.TrimSpace(a.Colegio)

	var errs ValidationErrors
	if !models.IsSeccional(a.Seccional) {
		errs = append(errs, invalid("seccional", "Seccional no válida")...)
	}
	if a.Ciudad == "" || a.Recinto == "" || a.Colegio == "" {
		errs = append(errs, invalid("ubicacion", "Ciudad, recinto y colegio son obligatorios")...)
	}
	if a.VotosFP < 0 || a.VotosPRM < 0 || a.VotosPLD < 0 || a.VotosOtros < 0 || a.VotosNulos < 0 {
		errs = append(errs, invalid("votos", "Los votos no pueden ser negativos")...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	a.ID = uuid.New().String()
	a.CreatedAt = time.Now()
	if err := s.repos.Acta.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create acta: %w", err)
	}

	s.log.Info().
		Str("acta_id", a.ID).
		Str("seccional", a.Seccional).
		Str("colegio", a.Colegio).
		Str("actor", actor.DisplayName()).
		Msg("Acta recorded")

	return a, nil
}

// DeleteActas removes the actas under a scope. Only Admins may delete, and
// the scope must name at least a city or a single acta.
func (s *statsService) DeleteActas(ctx context.Context, actor models.Actor, scope models.ActaScope) (int64, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	if scope.ActaID == "" && (scope.Seccional == "" || scope.Ciudad == "") {
		return 0, invalid("scope", "Selecciona una ciudad, recinto, colegio o acta para eliminar")
	}

	n, err := s.repos.Acta.Delete(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete actas: %w", err)
	}

	s.log.Info().
		Int64("deleted", n).
		Str("seccional", scope.Seccional).
		Str("ciudad", scope.Ciudad).
		Str("recinto", scope.Recinto).
		Str("colegio", scope.Colegio).
		Str("acta_id", scope.ActaID).
		Str("actor", actor.DisplayName()).
		Msg("Actas deleted")

	return n, nil
}

// Counts reports record and job counters for the metrics endpoint
func (s *statsService) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)

	affiliates, err := s.repos.Affiliate.Count(ctx)
	if err != nil {
		return nil, err
	}
	counts["afiliados"] = affiliates

	historial, err := s.repos.Audit.Count(ctx)
	if err != nil {
		return nil, err
	}
	counts["historial"] = historial

	jobs, err := s.repos.Job.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for status, n := range jobs {
		counts["jobs_"+string(status)] = n
	}

	return counts, nil
}

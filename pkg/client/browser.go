package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

// Defaults for BrowserOptions
const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultLoadingFloor = 300 * time.Millisecond
)

// Lister fetches one page of affiliates; *Client implements it
type Lister interface {
	ListAffiliates(ctx context.Context, f search.Filter) (*models.AffiliatePage, error)
}

// State is the fetch lifecycle of a Browser
type State int

// Success and Failed are resting states; any change moves back to Loading
const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Snapshot is what a Browser currently shows
type Snapshot struct {
	State      State
	Filter     search.Filter
	Page       *models.AffiliatePage
	Err        error
	Generation uint64
}

// BrowserOptions tunes a Browser; zero durations take the defaults
type BrowserOptions struct {
	Debounce     time.Duration
	LoadingFloor time.Duration
	// OnChange is called after every state transition, outside the lock
	OnChange func(Snapshot)
}

// Browser drives the affiliate listing. Every request is stamped with a
// generation; a response is applied only if no newer request was issued.
type Browser struct {
	ctx    context.Context
	lister Lister
	opts   BrowserOptions
	log    zerolog.Logger

	mu         sync.Mutex
	filter     search.Filter
	generation uint64
	state      State
	page       *models.AffiliatePage
	err        error
	timer      *time.Timer
	pending    sync.WaitGroup
}

// NewBrowser creates a browser starting at page 1 with no filters
func NewBrowser(ctx context.Context, lister Lister, opts BrowserOptions, log zerolog.Logger) *Browser {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.LoadingFloor < 0 {
		opts.LoadingFloor = 0
	} else if opts.LoadingFloor == 0 {
		opts.LoadingFloor = DefaultLoadingFloor
	}
	return &Browser{
		ctx:    ctx,
		lister: lister,
		opts:   opts,
		log:    log.With().Str("component", "browser").Logger(),
		filter: search.Filter{Page: 1},
		page:   emptyPage(1),
	}
}

// Snapshot returns the current state
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Browser) snapshotLocked() Snapshot {
	return Snapshot{
		State:      b.state,
		Filter:     b.filter,
		Page:       b.page,
		Err:        b.err,
		Generation: b.generation,
	}
}

// Load fetches the current selection
func (b *Browser) Load() {
	b.mu.Lock()
	f := b.filter
	b.mu.Unlock()
	b.apply(f)
}

// Refresh fetches the current selection again without leaving the current page
func (b *Browser) Refresh() {
	b.Load()
}

// SetQuery changes the search text after the debounce delay; each call restarts the delay
func (b *Browser) SetQuery(q string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil && b.timer.Stop() {
		b.pending.Done()
	}
	b.pending.Add(1)
	b.timer = time.AfterFunc(b.opts.Debounce, func() {
		defer b.pending.Done()
		b.mu.Lock()
		next := b.filter
		b.mu.Unlock()
		next.Query = q
		b.apply(next)
	})
}

// SetFilter replaces the selection immediately. The page goes back to 1
// whenever anything other than the page changed.
func (b *Browser) SetFilter(next search.Filter) {
	b.apply(next)
}

// SetPage moves to another page of the same selection
func (b *Browser) SetPage(page int) {
	b.mu.Lock()
	next := b.filter
	b.mu.Unlock()
	next.Page = page
	b.apply(next)
}

func (b *Browser) apply(next search.Filter) {
	b.mu.Lock()
	b.filter = b.filter.WithSelection(next)
	b.generation++
	gen, f := b.generation, b.filter
	b.state = StateLoading
	b.err = nil
	snap := b.snapshotLocked()
	b.pending.Add(1)
	b.mu.Unlock()

	b.notify(snap)
	go b.fetch(gen, f)
}

func (b *Browser) fetch(gen uint64, f search.Filter) {
	defer b.pending.Done()

	start := time.Now()
	page, err := b.lister.ListAffiliates(b.ctx, f)
	if wait := b.opts.LoadingFloor - time.Since(start); wait > 0 {
		time.Sleep(wait)
	}

	b.mu.Lock()
	if gen != b.generation {
		latest := b.generation
		b.mu.Unlock()
		b.log.Debug().Uint64("generation", gen).Uint64("latest", latest).Msg("Discarding stale response")
		return
	}

	if err != nil {
		b.log.Error().Err(err).Uint64("generation", gen).Msg("Failed to load affiliates")
		b.state = StateFailed
		b.err = err
		b.page = emptyPage(f.Page)
	} else {
		b.state = StateSuccess
		b.page = page
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.notify(snap)
}

func (b *Browser) notify(s Snapshot) {
	if b.opts.OnChange != nil {
		b.opts.OnChange(s)
	}
}

// Wait blocks until pending debounces and in-flight fetches have finished
func (b *Browser) Wait() {
	b.pending.Wait()
}

// Close drops a pending debounced search
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil && b.timer.Stop() {
		b.pending.Done()
	}
}

func emptyPage(page int) *models.AffiliatePage {
	if page < 1 {
		page = 1
	}
	return &models.AffiliatePage{Items: []*models.Affiliate{}, Page: page, PageSize: search.PageSize}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
)

func TestClient_ListAffiliates(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.AffiliatePage{
			Items: []*models.Affiliate{{ID: "a-1", Nombre: "José"}},
			Total: 1, Page: 2, PageSize: 12, TotalPages: 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", nil)
	page, err := c.ListAffiliates(context.Background(), search.Filter{Query: "josé pérez", Seccional: "Madrid", Page: 2})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "page=2&q=jos%C3%A9+p%C3%A9rez&seccional=Madrid", gotQuery)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "José", page.Items[0].Nombre)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("seccional") == "Zurich" {
			json.NewEncoder(w).Encode(models.AffiliatePage{Items: []*models.Affiliate{}, Error: "Error al cargar los afiliados"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid or expired token"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "expired", nil)

	_, err := c.ListAffiliates(context.Background(), search.Filter{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid or expired token", apiErr.Message)

	page, err := c.ListAffiliates(context.Background(), search.Filter{Seccional: "Zurich"})
	require.ErrorAs(t, err, &apiErr)
	assert.NotNil(t, page)
}

// fakeLister answers each call after the delay chosen for its query
type fakeLister struct {
	mu     sync.Mutex
	calls  []search.Filter
	delays map[string]time.Duration
	err    error
}

func (f *fakeLister) ListAffiliates(ctx context.Context, filter search.Filter) (*models.AffiliatePage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filter)
	delay := f.delays[filter.Query]
	err := f.err
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, err
	}
	return &models.AffiliatePage{
		Items: []*models.Affiliate{{ID: "result-" + filter.Query, Nombre: filter.Query}},
		Total: 1, Page: filter.Page, PageSize: search.PageSize,
	}, nil
}

func (f *fakeLister) Calls() []search.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]search.Filter, len(f.calls))
	copy(out, f.calls)
	return out
}

func fastOptions() BrowserOptions {
	return BrowserOptions{Debounce: 20 * time.Millisecond, LoadingFloor: -1}
}

func TestBrowser_StaleResponseIsDiscarded(t *testing.T) {
	lister := &fakeLister{delays: map[string]time.Duration{"slow": 80 * time.Millisecond}}
	b := NewBrowser(context.Background(), lister, fastOptions(), zerolog.Nop())

	b.SetFilter(search.Filter{Query: "slow"})
	b.SetFilter(search.Filter{Query: "fast"})
	b.Wait()

	snap := b.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, uint64(2), snap.Generation)
	require.Len(t, snap.Page.Items, 1)
	assert.Equal(t, "result-fast", snap.Page.Items[0].ID)
	assert.Len(t, lister.Calls(), 2)
}

func TestBrowser_FilterChangeResetsPage(t *testing.T) {
	lister := &fakeLister{}
	b := NewBrowser(context.Background(), lister, fastOptions(), zerolog.Nop())

	b.SetPage(3)
	b.Wait()
	assert.Equal(t, 3, b.Snapshot().Filter.Page)

	next := b.Snapshot().Filter
	next.Role = "Presidente DM"
	b.SetFilter(next)
	b.Wait()

	calls := lister.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 3, calls[0].Page)
	assert.Equal(t, 1, calls[1].Page)
	assert.Equal(t, "Presidente DM", calls[1].Role)
}

func TestBrowser_DebouncesSearchText(t *testing.T) {
	lister := &fakeLister{}
	b := NewBrowser(context.Background(), lister, fastOptions(), zerolog.Nop())
	defer b.Close()

	b.SetPage(2)
	b.Wait()

	for _, q := range []string{"j", "jo", "jos", "jose"} {
		b.SetQuery(q)
		time.Sleep(2 * time.Millisecond)
	}
	b.Wait()

	calls := lister.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "jose", calls[1].Query)
	assert.Equal(t, 1, calls[1].Page, "a new search starts at page 1")
}

func TestBrowser_FailureAppliesEmptyPage(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection reset")}

	var mu sync.Mutex
	var states []State
	opts := fastOptions()
	opts.OnChange = func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	}

	b := NewBrowser(context.Background(), lister, opts, zerolog.Nop())
	b.Load()
	b.Wait()

	snap := b.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.EqualError(t, snap.Err, "connection reset")
	assert.Empty(t, snap.Page.Items)
	assert.NotNil(t, snap.Page.Items)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLoading, StateFailed}, states)
}

func TestBrowser_LoadingFloor(t *testing.T) {
	lister := &fakeLister{}
	b := NewBrowser(context.Background(), lister, BrowserOptions{LoadingFloor: 60 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	b.Load()
	assert.Equal(t, StateLoading, b.Snapshot().State)
	b.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, StateSuccess, b.Snapshot().State)
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateLoading: "loading", StateSuccess: "success", StateFailed: "failed"} {
		assert.Equal(t, want, fmt.Sprint(s))
	}
}

func TestClient_CreateImportAndStatus(t *testing.T) {
	var gotKey, gotFile string
	var gotContent []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/affiliates/imports":
			gotKey = r.Header.Get("Idempotency-Key")
			file, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer file.Close()
			gotFile = header.Filename
			gotContent, _ = io.ReadAll(file)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"job_id":"job-1","status":"pending","total_records":2}`))
		case r.URL.Path == "/v1/affiliates/imports/job-1":
			json.NewEncoder(w).Encode(models.JobResponse{
				Job:      models.Job{ID: "job-1", Status: models.JobStatusCompleted, TotalRecords: 2, ProcessedCount: 2, SuccessfulCount: 2},
				Progress: 100,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Registro no encontrado"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	job, err := c.CreateImport(context.Background(), "afiliados.csv", []byte("nombre,apellidos\n"), "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.TotalRecords)
	assert.Equal(t, "upload-1", gotKey)
	assert.Equal(t, "afiliados.csv", gotFile)
	assert.Equal(t, "nombre,apellidos\n", string(gotContent))

	status, err := c.ImportStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status.Status)
	assert.Equal(t, 2, status.SuccessfulCount)
	assert.Equal(t, 100, status.Progress)

	_, err = c.ImportStatus(context.Background(), "job-2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

type fakeStatuser struct {
	mu      sync.Mutex
	answers []models.JobResponse
	polls   int
}

func (f *fakeStatuser) ImportStatus(ctx context.Context, jobID string) (*models.JobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	f.polls++
	resp := f.answers[i]
	return &resp, nil
}

func jobStatus(status models.JobStatus, ok, failed int) models.JobResponse {
	return models.JobResponse{Job: models.Job{ID: "job-1", Status: status, SuccessfulCount: ok, FailedCount: failed}}
}

func TestWaitForImport_RefreshesCurrentPage(t *testing.T) {
	tests := []struct {
		name        string
		final       models.JobResponse
		wantRefresh bool
	}{
		{"some rows inserted", jobStatus(models.JobStatusCompleted, 3, 1), true},
		{"every row failed", jobStatus(models.JobStatusCompleted, 0, 4), false},
		{"job failed before any insert", jobStatus(models.JobStatusFailed, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{}
			b := NewBrowser(context.Background(), lister, fastOptions(), zerolog.Nop())

			next := search.Filter{Seccional: "Madrid", Page: 1}
			b.SetFilter(next)
			b.Wait()
			b.SetPage(3)
			b.Wait()
			before := len(lister.Calls())

			statuser := &fakeStatuser{answers: []models.JobResponse{
				jobStatus(models.JobStatusPending, 0, 0),
				jobStatus(models.JobStatusProcessing, 1, 0),
				tt.final,
			}}

			status, err := WaitForImport(context.Background(), statuser, b, "job-1", time.Millisecond)
			require.NoError(t, err)
			b.Wait()

			assert.Equal(t, tt.final.Status, status.Status)
			assert.Equal(t, 3, statuser.polls)

			calls := lister.Calls()
			if !tt.wantRefresh {
				assert.Len(t, calls, before)
				return
			}
			require.Len(t, calls, before+1)
			refreshed := calls[len(calls)-1]
			assert.Equal(t, 3, refreshed.Page, "refresh keeps the current page")
			assert.Equal(t, "Madrid", refreshed.Seccional)
			assert.Equal(t, 3, b.Snapshot().Filter.Page)
		})
	}
}

func TestWaitForImport_StopsOnCancel(t *testing.T) {
	statuser := &fakeStatuser{answers: []models.JobResponse{jobStatus(models.JobStatusProcessing, 0, 0)}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	status, err := WaitForImport(ctx, statuser, nil, "job-1", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.JobStatusProcessing, status.Status)
}

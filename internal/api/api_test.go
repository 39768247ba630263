package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/api"
	"github.com/crm-electoral-api/internal/auth"
	"github.com/crm-electoral-api/internal/background"
	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/mocks"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/search"
	"github.com/crm-electoral-api/internal/service"
)

const testSecret = "test-secret-test-secret-test-secret"

var (
	adminActor    = models.Actor{Name: "Admin", Role: models.ActorAdmin}
	operatorActor = models.Actor{Name: "Marta", Role: models.ActorOperator, Seccional: "Madrid"}
)

type testMocks struct {
	affiliate *mocks.MockAffiliateService
	imports   *mocks.MockImportService
	export    *mocks.MockExportService
	job       *mocks.MockJobService
	notify    *mocks.MockNotifyService
	stats     *mocks.MockStatsService
	uploadDir string
}

func setupTestRouter(t *testing.T) (*gin.Engine, *testMocks) {
	gin.SetMode(gin.TestMode)

	m := &testMocks{
		affiliate: mocks.NewMockAffiliateService(),
		imports:   mocks.NewMockImportService(),
		export:    mocks.NewMockExportService(),
		job:       mocks.NewMockJobService(),
		notify:    mocks.NewMockNotifyService(),
		stats:     mocks.NewMockStatsService(),
		uploadDir: t.TempDir(),
	}

	services := &service.Services{
		Affiliate: m.affiliate,
		Import:    m.imports,
		Export:    m.export,
		Job:       m.job,
		Notify:    m.notify,
		Stats:     m.stats,
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080", AllowedOrigins: "*"},
		Auth:   config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
		Import: config.ImportConfig{
			MaxUploadSize: 1024 * 1024,
			UploadDir:     m.uploadDir,
		},
		Storage:   config.StorageConfig{MaxPhotoSize: 1024},
		RateLimit: config.RateLimitConfig{ContactPerSecond: 0.001, ContactBurst: 2},
	}

	log := zerolog.Nop()
	router := api.NewRouter(services, cfg, log)

	return router, m
}

func tokenFor(t *testing.T, actor models.Actor) string {
	t.Helper()
	token, err := auth.NewJWTManager(testSecret, time.Hour).GenerateToken("user-1", actor)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func authed(t *testing.T, req *http.Request, actor models.Actor) *http.Request {
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, actor))
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "crm-electoral-api" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, m := setupTestRouter(t)
	m.stats.CountsResult = map[string]int{"afiliados": 42, "historial": 100, "jobs_completed": 3}

	w := serve(router, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	db := response["database"].(map[string]interface{})
	if db["afiliados"].(float64) != 42 {
		t.Errorf("Expected 42 afiliados, got %v", db["afiliados"])
	}
	if db["jobs_completed"].(float64) != 3 {
		t.Errorf("Expected 3 completed jobs, got %v", db["jobs_completed"])
	}
}

func TestAuthRequired(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"operator without seccional", "Bearer " + tokenFor(t, models.Actor{Name: "X", Role: models.ActorOperator}), http.StatusForbidden},
		{"valid token", "Bearer " + tokenFor(t, adminActor), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/affiliates", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(router, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListAffiliates_PassesActorAndFilter(t *testing.T) {
	router, m := setupTestRouter(t)

	req := authed(t, httptest.NewRequest("GET", "/v1/affiliates?q=jose&seccional=Zurich&status=Validado&date=7days&sort=a-z&page=2", nil), operatorActor)
	w := serve(router, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if m.affiliate.LastActor != operatorActor {
		t.Errorf("Expected operator actor, got %+v", m.affiliate.LastActor)
	}

	want := search.Filter{Query: "jose", Seccional: "Zurich", Status: "Validado", DateRange: "7days", Sort: "a-z", Page: 2}
	if m.affiliate.LastFilter != want {
		t.Errorf("Expected filter %+v, got %+v", want, m.affiliate.LastFilter)
	}

	var page models.AffiliatePage
	json.Unmarshal(w.Body.Bytes(), &page)
	if page.PageSize != search.PageSize {
		t.Errorf("Expected page size %d, got %d", search.PageSize, page.PageSize)
	}
}

func TestListAffiliates_BadPage(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates?page=abc", nil), adminActor))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCreateAffiliate_ErrorMapping(t *testing.T) {
	router, m := setupTestRouter(t)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{"created", nil, http.StatusCreated, `"nombre":"Ana"`},
		{"duplicate cedula", &service.DuplicateError{Field: "cedula"}, http.StatusConflict, "Cédula ya existe"},
		{"validation", service.ValidationErrors{{Field: "nombre", Message: "Nombre es obligatorio"}}, http.StatusBadRequest, "Nombre es obligatorio"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "error"},
		{"backend failure", context.DeadlineExceeded, http.StatusInternalServerError, "Error al registrar el afiliado"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.affiliate.CreateFunc = func(ctx context.Context, actor models.Actor, in *models.AffiliateInput) (*models.Affiliate, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.Affiliate{ID: "a-1", Nombre: in.Nombre}, nil
			}

			req := httptest.NewRequest("POST", "/v1/affiliates", strings.NewReader(`{"nombre":"Ana","apellidos":"Pérez","cedula":"001"}`))
			req.Header.Set("Content-Type", "application/json")
			w := serve(router, authed(t, req, adminActor))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.expectedBody) {
				t.Errorf("Expected '%s' in response, got: %s", tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestGetAffiliate_NotFoundAndForbidden(t *testing.T) {
	router, m := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/missing", nil), adminActor))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	m.affiliate.GetFunc = func(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
		return nil, service.ErrForbidden
	}
	w = serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/other-chapter", nil), operatorActor))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestToggleValidationAndHistory(t *testing.T) {
	router, m := setupTestRouter(t)
	m.affiliate.ToggleFunc = func(ctx context.Context, actor models.Actor, id string) (*models.Affiliate, error) {
		return &models.Affiliate{ID: id, Validado: true}, nil
	}

	w := serve(router, authed(t, httptest.NewRequest("POST", "/v1/affiliates/a-1/validation", nil), adminActor))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"validado":true`) {
		t.Errorf("Expected validated affiliate, got: %s", w.Body.String())
	}

	w = serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/a-1/historial", nil), adminActor))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty list, got: %s", w.Body.String())
	}
}

func TestSetPhoto(t *testing.T) {
	router, m := setupTestRouter(t)

	var gotBody []byte
	m.affiliate.SetPhotoFunc = func(ctx context.Context, actor models.Actor, id string, body []byte, contentType string) (*models.Affiliate, error) {
		gotBody = body
		return &models.Affiliate{ID: id, FotoURL: "/fotos_afiliados/a-1.png"}, nil
	}

	body, contentType := multipartBody(t, "foto", "ana.png", []byte("\x89PNG\r\n\x1a\nfake"))
	req := httptest.NewRequest("PUT", "/v1/affiliates/a-1/photo", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(router, authed(t, req, adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(gotBody, []byte("\x89PNG")) {
		t.Errorf("Expected photo bytes to reach the service, got %q", gotBody)
	}

	req = httptest.NewRequest("PUT", "/v1/affiliates/a-1/photo", nil)
	w = serve(router, authed(t, req, adminActor))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without a file, got %d", w.Code)
	}
}

func TestCreateImport(t *testing.T) {
	router, m := setupTestRouter(t)

	body, contentType := multipartBody(t, "file", "afiliados.csv", []byte("nombre,apellidos,cedula,email\nAna,Pérez,001,ana@x.com\n"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(router, authed(t, req, operatorActor))

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d. Body: %s", w.Code, w.Body.String())
	}
	if len(m.imports.Requests) != 1 {
		t.Fatalf("Expected 1 import request, got %d", len(m.imports.Requests))
	}

	saved := m.imports.Requests[0]
	if saved.FileName != "afiliados.csv" {
		t.Errorf("Expected original file name, got %s", saved.FileName)
	}
	if !strings.HasPrefix(saved.FilePath, m.uploadDir) {
		t.Errorf("Expected upload under %s, got %s", m.uploadDir, saved.FilePath)
	}
	if _, err := os.Stat(saved.FilePath); err != nil {
		t.Errorf("Expected saved upload, got %v", err)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["job_id"] != "test-job-id" {
		t.Errorf("Expected job_id 'test-job-id', got %v", response["job_id"])
	}
}

func TestImportWithWrongFileExtension(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, filename := range []string{"afiliados.pdf", "afiliados.ndjson", "afiliados"} {
		t.Run(filename, func(t *testing.T) {
			body, contentType := multipartBody(t, "file", filename, []byte("test data\n"))
			req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
			req.Header.Set("Content-Type", contentType)
			w := serve(router, authed(t, req, adminActor))

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d. Body: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "Formato no soportado") {
				t.Errorf("Expected format error in response, got: %s", w.Body.String())
			}
		})
	}
}

func TestCreateImport_EmptyFile(t *testing.T) {
	router, m := setupTestRouter(t)
	m.imports.CreateJobFunc = func(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error) {
		return nil, service.ErrEmptyFile
	}

	body, contentType := multipartBody(t, "file", "vacio.csv", []byte("nombre,apellidos,cedula,email\n"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(router, authed(t, req, adminActor))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "el archivo está vacío") {
		t.Errorf("Expected empty file notice, got: %s", w.Body.String())
	}

	entries, _ := os.ReadDir(m.uploadDir)
	if len(entries) != 0 {
		t.Errorf("Expected rejected upload to be removed, found %d files", len(entries))
	}
}

func TestIdempotencyKey(t *testing.T) {
	router, m := setupTestRouter(t)

	m.imports.CreateJobFunc = func(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error) {
		return &models.Job{
			ID:             "existing-job-123",
			Status:         models.JobStatusCompleted,
			FilePath:       "/data/uploads/afiliados_old.csv",
			IdempotencyKey: req.IdempotencyKey,
		}, nil
	}

	body, contentType := multipartBody(t, "file", "afiliados.csv", []byte("nombre,apellidos,cedula,email\nAna,Pérez,001,ana@x.com\n"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", "unique-idempotency-key")
	w := serve(router, authed(t, req, adminActor))

	// Should return existing job, not create new one
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 (existing job), got %d", w.Code)
	}
	if len(m.imports.Requests) != 1 || m.imports.Requests[0].IdempotencyKey != "unique-idempotency-key" {
		t.Errorf("Expected the key to reach the import service, got %+v", m.imports.Requests)
	}

	var response models.Job
	json.Unmarshal(w.Body.Bytes(), &response)
	if response.ID != "existing-job-123" {
		t.Errorf("Expected existing job, got %s", response.ID)
	}

	entries, _ := os.ReadDir(m.uploadDir)
	if len(entries) != 0 {
		t.Errorf("Expected the replayed upload to be removed, found %d files", len(entries))
	}
}

func TestIdempotencyKey_ViewerCannotReplay(t *testing.T) {
	router, m := setupTestRouter(t)

	m.imports.CreateJobFunc = func(ctx context.Context, actor models.Actor, req *models.ImportRequest) (*models.Job, error) {
		if !actor.IsAdmin() && !actor.IsOperator() {
			return nil, service.ErrForbidden
		}
		return &models.Job{ID: "existing-job-123", FilePath: "/elsewhere.csv"}, nil
	}

	body, contentType := multipartBody(t, "file", "afiliados.csv", []byte("nombre\n"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", "unique-idempotency-key")
	w := serve(router, authed(t, req, models.Actor{Name: "Lector", Role: models.ActorViewer}))

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d. Body: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "existing-job-123") {
		t.Errorf("Expected no job details for a viewer, got %s", w.Body.String())
	}
}

func TestCreateImport_AcceptsMacroEnabledWorkbook(t *testing.T) {
	router, m := setupTestRouter(t)

	body, contentType := multipartBody(t, "file", "afiliados.xlsm", []byte("PK"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(router, authed(t, req, adminActor))

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d. Body: %s", w.Code, w.Body.String())
	}
	if len(m.imports.Requests) != 1 || !strings.HasSuffix(m.imports.Requests[0].FilePath, ".xlsm") {
		t.Errorf("Expected the .xlsm upload to reach the import service, got %+v", m.imports.Requests)
	}
}

func TestGetImportStatus(t *testing.T) {
	router, m := setupTestRouter(t)

	now := time.Now()
	m.job.Jobs["test-job-123"] = &models.JobResponse{
		Job: models.Job{
			ID:              "test-job-123",
			Status:          models.JobStatusCompleted,
			FileName:        "afiliados.xlsx",
			TotalRecords:    10,
			ProcessedCount:  10,
			SuccessfulCount: 9,
			FailedCount:     1,
			CreatedAt:       now,
		},
		Progress:   100,
		ErrorCount: 1,
		Results: []models.ImportRowResult{
			{Row: 2, Success: true},
			{Row: 3, Error: "Cédula ya existe"},
		},
	}

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/test-job-123", nil), adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response models.JobResponse
	json.Unmarshal(w.Body.Bytes(), &response)

	if response.Job.ID != "test-job-123" {
		t.Errorf("Expected job ID 'test-job-123', got '%s'", response.Job.ID)
	}
	if response.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", response.Progress)
	}
	if len(response.Results) != 2 || response.Results[1].Row != 3 {
		t.Errorf("Expected results in file order, got %+v", response.Results)
	}
}

func TestGetImportStatus_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/nonexistent", nil), adminActor))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetImportErrors(t *testing.T) {
	router, m := setupTestRouter(t)

	m.job.Jobs["job-with-errors"] = &models.JobResponse{Job: models.Job{ID: "job-with-errors"}}
	m.job.Errors["job-with-errors"] = []models.ImportRowResult{
		{Row: 3, Error: "Cédula ya existe", Data: &models.Affiliate{Nombre: "Luis", Apellidos: "Gómez", Cedula: "001"}},
		{Row: 7, Error: "Nombre es obligatorio"},
	}

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/job-with-errors/errors", nil), adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["error_count"].(float64) != 2 {
		t.Errorf("Expected 2 errors, got %v", response["error_count"])
	}

	w = serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/job-with-errors/errors?format=csv", nil), adminActor))

	if contentType := w.Header().Get("Content-Type"); contentType != "text/csv" {
		t.Errorf("Expected text/csv, got %s", contentType)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("fila,cedula,nombre,error")) {
		t.Error("CSV should contain header row")
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("3,001,Luis Gómez,Cédula ya existe")) {
		t.Errorf("CSV should contain error data, got: %s", w.Body.String())
	}
}

func TestGetImportErrors_UnknownJob(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/nope/errors", nil), adminActor))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetImportErrors_EmptyErrors(t *testing.T) {
	router, m := setupTestRouter(t)
	m.job.Jobs["clean-job"] = &models.JobResponse{Job: models.Job{ID: "clean-job"}}

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/clean-job/errors", nil), adminActor))

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["error_count"].(float64) != 0 {
		t.Errorf("Expected 0 errors, got %v", response["error_count"])
	}
	if errs, ok := response["errors"].([]interface{}); !ok || len(errs) != 0 {
		t.Errorf("Expected empty error list, got %v", response["errors"])
	}
}

func TestGetImportStatus_ScopedToActor(t *testing.T) {
	router, m := setupTestRouter(t)

	m.job.Jobs["madrid-job"] = &models.JobResponse{
		Job: models.Job{ID: "madrid-job", ActorRole: models.ActorOperator, ActorSeccional: "Madrid"},
		Results: []models.ImportRowResult{
			{Row: 2, Success: true, Data: &models.Affiliate{Cedula: "MAD-001", Seccional: "Madrid"}},
		},
	}
	m.job.Jobs["admin-job"] = &models.JobResponse{
		Job: models.Job{ID: "admin-job", ActorRole: models.ActorAdmin, ActorSeccional: "Madrid"},
		Results: []models.ImportRowResult{
			{Row: 2, Success: true, Data: &models.Affiliate{Cedula: "ZRH-999", Seccional: "Zurich"}},
		},
	}

	zurichOperator := models.Actor{Name: "Hans", Role: models.ActorOperator, Seccional: "Zurich"}
	viewer := models.Actor{Name: "Lector", Role: models.ActorViewer}

	tests := []struct {
		name   string
		path   string
		actor  models.Actor
		status int
	}{
		{"admin reads any job", "/v1/affiliates/imports/admin-job", adminActor, http.StatusOK},
		{"operator reads own chapter job", "/v1/affiliates/imports/madrid-job", operatorActor, http.StatusOK},
		{"operator of another chapter", "/v1/affiliates/imports/madrid-job", zurichOperator, http.StatusNotFound},
		{"operator reads admin job", "/v1/affiliates/imports/admin-job", operatorActor, http.StatusNotFound},
		{"viewer", "/v1/affiliates/imports/madrid-job", viewer, http.StatusForbidden},
		{"errors for another chapter", "/v1/affiliates/imports/madrid-job/errors", zurichOperator, http.StatusNotFound},
		{"errors for a viewer", "/v1/affiliates/imports/madrid-job/errors?format=csv", viewer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, authed(t, httptest.NewRequest("GET", tt.path, nil), tt.actor))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status != http.StatusOK && (strings.Contains(w.Body.String(), "MAD-001") || strings.Contains(w.Body.String(), "ZRH-999")) {
				t.Errorf("Expected no affiliate data in response, got %s", w.Body.String())
			}
		})
	}
}

func TestImportJob_OtherChapterCannotReadRows(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	repos := mocks.NewMockRepositories()
	runner := background.NewRunner(2, time.Second, log)
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: "*"},
		Auth:   config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
		Mail:   config.MailConfig{ContactBatchSize: 50, AffiliateBatchSize: 100},
		Import: config.ImportConfig{MaxUploadSize: 1024 * 1024, UploadDir: t.TempDir(), ResultsTTL: time.Hour},
		Org:    config.OrgConfig{DefaultSeccional: "Madrid", PhoneCountryCode: "34", Timezone: "UTC"},
	}
	services := service.NewServices(repos.Repositories(), service.Dependencies{
		Mailer:   mocks.NewMockMailer(),
		Uploader: mocks.NewMockUploader(),
		Runner:   runner,
	}, cfg, log)
	router := api.NewRouter(services, cfg, log)

	body, contentType := multipartBody(t, "file", "zurich.csv", []byte("nombre,apellidos,cedula,email,seccional\nHans,Muster,ZRH-999,hans@z.ch,Zurich\n"))
	req := httptest.NewRequest("POST", "/v1/affiliates/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(router, authed(t, req, adminActor))
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d. Body: %s", w.Code, w.Body.String())
	}

	var created map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &created)
	jobID, _ := created["job_id"].(string)

	job, err := repos.Job.GetByID(context.Background(), jobID)
	if err != nil || job == nil {
		t.Fatalf("Expected stored job %s, got %v", jobID, err)
	}
	if err := services.Import.ProcessImport(context.Background(), job); err != nil {
		t.Fatalf("Failed to process import: %v", err)
	}
	runner.Wait()

	w = serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/"+jobID, nil), adminActor))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ZRH-999") {
		t.Fatalf("Expected the admin to see the imported row, got %d: %s", w.Code, w.Body.String())
	}

	for _, actor := range []models.Actor{operatorActor, {Name: "Lector", Role: models.ActorViewer}} {
		w = serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/imports/"+jobID, nil), actor))
		if w.Code == http.StatusOK {
			t.Errorf("Expected %s to be refused, got 200", actor.Role)
		}
		if strings.Contains(w.Body.String(), "ZRH-999") || strings.Contains(w.Body.String(), "hans@z.ch") {
			t.Errorf("Expected no Zurich data for %s, got %s", actor.Role, w.Body.String())
		}
	}
}

func TestExport(t *testing.T) {
	router, m := setupTestRouter(t)

	var gotFilter search.Filter
	m.export.ExportFunc = func(ctx context.Context, actor models.Actor, filter search.Filter) (*service.ExportFile, error) {
		gotFilter = filter
		return &service.ExportFile{Name: "Afiliados_FP_Europa_2025-03-07.xlsx", Data: []byte("PK"), Count: 14}, nil
	}

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/export?seccional=Madrid&date=30days", nil), adminActor))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != service.ContentTypeXLSX {
		t.Errorf("Expected xlsx content type, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Afiliados_FP_Europa_2025-03-07.xlsx") {
		t.Errorf("Expected file name in Content-Disposition, got %s", cd)
	}
	if gotFilter.Seccional != "Madrid" || gotFilter.DateRange != "30days" {
		t.Errorf("Expected filter to reach the service, got %+v", gotFilter)
	}
}

func TestExport_NoRows(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/export", nil), adminActor))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no hay datos para exportar") {
		t.Errorf("Expected notice, got: %s", w.Body.String())
	}
}

func TestBroadcast(t *testing.T) {
	router, m := setupTestRouter(t)

	m.notify.BroadcastFunc = func(ctx context.Context, actor models.Actor, req *service.BroadcastRequest) (*models.BroadcastResult, error) {
		return &models.BroadcastResult{Total: 120, Sent: 100, Errors: 20}, nil
	}

	req := httptest.NewRequest("POST", "/v1/broadcasts", strings.NewReader(`{"subject":"Aviso","message":"Hola","audience":"affiliates"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, authed(t, req, adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var result models.BroadcastResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Sent != 100 || result.Errors != 20 {
		t.Errorf("Expected explicit counts, got %+v", result)
	}
}

func TestBroadcast_MailerDisabledIsWarning(t *testing.T) {
	router, m := setupTestRouter(t)
	m.notify.BroadcastFunc = func(ctx context.Context, actor models.Actor, req *service.BroadcastRequest) (*models.BroadcastResult, error) {
		return nil, service.ErrMailerDisabled
	}

	req := httptest.NewRequest("POST", "/v1/broadcasts", strings.NewReader(`{"subject":"Aviso","message":"Hola"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, authed(t, req, adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "API Key de Resend no configurada") {
		t.Errorf("Expected warning, got: %s", w.Body.String())
	}
}

func TestWhatsAppLink(t *testing.T) {
	router, m := setupTestRouter(t)

	var gotMessage string
	m.notify.WhatsAppFunc = func(ctx context.Context, actor models.Actor, affiliateID, template, message string) (string, error) {
		gotMessage = message
		return "https://wa.me/+34600111222?text=Hola%20Ana", nil
	}

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/affiliates/a-1/whatsapp?template=custom&message=Hola+Ana", nil), operatorActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if gotMessage != "Hola Ana" {
		t.Errorf("Expected decoded message, got %q", gotMessage)
	}
	if !strings.Contains(w.Body.String(), "wa.me") {
		t.Errorf("Expected link in response, got: %s", w.Body.String())
	}
}

func TestContact_PublicAndRateLimited(t *testing.T) {
	router, m := setupTestRouter(t)

	calls := 0
	m.notify.ContactFunc = func(ctx context.Context, msg *models.ContactMessage) error {
		calls++
		return nil
	}

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/v1/contact", strings.NewReader(`{"nombre":"Ana","email":"ana@x.com","asunto":"Hola","mensaje":"Quiero colaborar"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", "203.0.113.9")
		return serve(router, req)
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Errorf("Expected status 200 on request %d, got %d", i+1, w.Code)
		}
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if calls != 2 {
		t.Errorf("Expected 2 forwarded messages, got %d", calls)
	}
}

func TestActas(t *testing.T) {
	router, m := setupTestRouter(t)

	w := serve(router, authed(t, httptest.NewRequest("GET", "/v1/actas?seccional=Madrid&ciudad=Getafe", nil), adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var view models.ActaView
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Level != models.LevelRecintos {
		t.Errorf("Expected level %s, got %s", models.LevelRecintos, view.Level)
	}

	var gotScope models.ActaScope
	m.stats.DeleteActasFunc = func(ctx context.Context, actor models.Actor, scope models.ActaScope) (int64, error) {
		gotScope = scope
		return 4, nil
	}
	w = serve(router, authed(t, httptest.NewRequest("DELETE", "/v1/actas?seccional=Madrid&ciudad=Getafe", nil), adminActor))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if gotScope.Ciudad != "Getafe" {
		t.Errorf("Expected scope to reach the service, got %+v", gotScope)
	}
	if !strings.Contains(w.Body.String(), `"deleted":4`) {
		t.Errorf("Expected deleted count, got: %s", w.Body.String())
	}
}

func TestCORSHeaders(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := serve(router, httptest.NewRequest("OPTIONS", "/v1/affiliates", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
	}

	allowOrigin := w.Header().Get("Access-Control-Allow-Origin")
	if allowOrigin != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin '*', got '%s'", allowOrigin)
	}

	allowHeaders := w.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(allowHeaders, "Authorization") {
		t.Errorf("Expected Authorization in allowed headers, got '%s'", allowHeaders)
	}
}
